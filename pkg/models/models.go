package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type PostType string

const (
	PostTypePost     PostType = "post"
	PostTypeReel     PostType = "reel"
	PostTypeCarousel PostType = "carousel"
)

// ParsingError is an expected, per-item failure kept inside a result.
type ParsingError struct {
	Message string `json:"message"`
}

func (e *ParsingError) Error() string {
	return e.Message
}

// ParsingResult is either a value or a ParsingError, never both.
type ParsingResult[T any] struct {
	value T
	err   *ParsingError
}

func Success[T any](v T) ParsingResult[T] {
	return ParsingResult[T]{value: v}
}

func Failure[T any](format string, args ...any) ParsingResult[T] {
	return ParsingResult[T]{err: &ParsingError{Message: fmt.Sprintf(format, args...)}}
}

// FailureFrom converts a failed result of another type, keeping its message.
func FailureFrom[T, U any](r ParsingResult[U]) ParsingResult[T] {
	return ParsingResult[T]{err: r.err}
}

func (r ParsingResult[T]) OK() bool {
	return r.err == nil
}

func (r ParsingResult[T]) Value() T {
	return r.value
}

func (r ParsingResult[T]) Err() *ParsingError {
	return r.err
}

// Get returns the value and whether it is present.
func (r ParsingResult[T]) Get() (T, bool) {
	return r.value, r.err == nil
}

type resultJSON[T any] struct {
	Value *T     `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func (r ParsingResult[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(resultJSON[T]{Error: r.err.Message})
	}
	v := r.value
	return json.Marshal(resultJSON[T]{Value: &v})
}

func (r *ParsingResult[T]) UnmarshalJSON(data []byte) error {
	var raw resultJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Error != "" || raw.Value == nil {
		*r = ParsingResult[T]{err: &ParsingError{Message: raw.Error}}
		return nil
	}
	*r = ParsingResult[T]{value: *raw.Value}
	return nil
}

type AccountSummary struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
	Posts     int    `json:"posts"`
}

// PlainPost is a listing reference resolved to a Post later.
type PlainPost struct {
	Type    PostType  `json:"type"`
	ID      string    `json:"id"`
	TakenAt time.Time `json:"taken_at"`
}

// ReelStats is present only on video posts.
type ReelStats struct {
	Duration  float64 `json:"duration"`
	ViewCount int     `json:"view_count"`
	PlayCount int     `json:"play_count"`
}

type Post struct {
	MediaID     string     `json:"media_id"`
	Code        string     `json:"code"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description"`
	PublishedAt time.Time  `json:"published_at"`
	LikeCount   int        `json:"like_count"`
	Reel        *ReelStats `json:"reel,omitempty"`
}

func (p Post) IsReel() bool {
	return p.Reel != nil
}

// CollectedData is the outcome of one harvest. Posts is nil when the account
// lookup failed.
type CollectedData struct {
	Account ParsingResult[AccountSummary] `json:"account"`
	Posts   []ParsingResult[Post]         `json:"posts"`
}

// NewestPost returns the latest publish time among successfully parsed posts.
func (c *CollectedData) NewestPost() time.Time {
	var newest time.Time
	for _, p := range c.Posts {
		if v, ok := p.Get(); ok && v.PublishedAt.After(newest) {
			newest = v.PublishedAt
		}
	}
	return newest
}

// Counts returns the number of parsed and failed posts.
func (c *CollectedData) Counts() (ok, failed int) {
	for _, p := range c.Posts {
		if p.OK() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// ShortUser is the identity record returned by a successful login.
type ShortUser struct {
	User                      bool   `json:"user"`
	UserID                    string `json:"userId"`
	Authenticated             bool   `json:"authenticated"`
	OneTapPrompt              bool   `json:"oneTapPrompt"`
	HasOnboardedToTextPostApp bool   `json:"has_onboarded_to_text_post_app"`
	Status                    string `json:"status"`
	Reactivated               bool   `json:"reactivated"`
}

// SessionCredentials are the cookies that authenticate later requests.
type SessionCredentials struct {
	SessionID string `json:"session_id"`
	CSRFToken string `json:"csrf_token"`
}

// UserID returns the numeric id prefix of the session id. Stored cookies
// keep the colon escaped as %3A.
func (s SessionCredentials) UserID() string {
	id := s.SessionID
	if v, err := url.PathUnescape(id); err == nil {
		id = v
	}
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[:i]
	}
	return id
}
