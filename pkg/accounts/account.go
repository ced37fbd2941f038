package accounts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Status is the health of an account. Only StatusWorking accounts are handed
// out by a Pool.
type Status string

const (
	StatusWorking                Status = "working"
	StatusChallengeRequired      Status = "challenge"
	StatusTempBlocked            Status = "temp_blocked"
	StatusBanned                 Status = "banned"
	StatusPasswordChangeRequired Status = "password_change"
	StatusCheckpointRequired     Status = "checkpoint"
	StatusUnknown                Status = "unknown"
)

var allStatuses = []Status{
	StatusWorking,
	StatusChallengeRequired,
	StatusTempBlocked,
	StatusBanned,
	StatusPasswordChangeRequired,
	StatusCheckpointRequired,
	StatusUnknown,
}

// ParseStatus returns the Status for s or an error if s is not one of the
// stored string forms.
func ParseStatus(s string) (Status, error) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown account status %q", s)
}

// Statuses lists every valid status in declaration order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Account is one platform identity. A Pool owns its accounts; callers read
// them through Pool.View and change them through Pool methods.
type Account struct {
	ID          string            `json:"id"`
	Login       string            `json:"login"`
	Password    string            `json:"password"`
	SessionID   string            `json:"session_id,omitempty"`
	Token       string            `json:"token,omitempty"`
	Status      Status            `json:"status"`
	LastChecked *time.Time        `json:"last_checked,omitempty"`
	FailCount   int               `json:"fail_count"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// HasSession reports whether a session id and token are stored.
func (a *Account) HasSession() bool {
	return a.SessionID != "" && a.Token != ""
}

func (a *Account) String() string {
	return a.Login
}

// UnmarshalJSON accepts numeric ids and defaults a missing status to working.
func (a *Account) UnmarshalJSON(data []byte) error {
	type alias Account
	var raw struct {
		alias
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Account(raw.alias)

	id := bytes.TrimSpace(raw.ID)
	switch {
	case len(id) == 0 || bytes.Equal(id, []byte("null")):
		a.ID = ""
	case id[0] == '"':
		if err := json.Unmarshal(id, &a.ID); err != nil {
			return fmt.Errorf("account id: %w", err)
		}
	default:
		n, err := strconv.ParseInt(string(id), 10, 64)
		if err != nil {
			return fmt.Errorf("account id: %w", err)
		}
		a.ID = strconv.FormatInt(n, 10)
	}

	if a.Status == "" {
		a.Status = StatusWorking
	}
	if _, err := ParseStatus(string(a.Status)); err != nil {
		return err
	}
	return nil
}

func (a *Account) clone() Account {
	c := *a
	if a.LastChecked != nil {
		t := *a.LastChecked
		c.LastChecked = &t
	}
	if a.Headers != nil {
		c.Headers = make(map[string]string, len(a.Headers))
		for k, v := range a.Headers {
			c.Headers[k] = v
		}
	}
	return c
}

// Sanitized returns a copy with secrets masked for display.
func (a Account) Sanitized() Account {
	c := a.clone()
	c.Password = maskString(a.Password)
	c.SessionID = maskString(a.SessionID)
	c.Token = maskString(a.Token)
	return c
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
