package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(subtle)
)

// TargetRow is one line of the collect summary.
type TargetRow struct {
	Username string
	Posts    int
	Failed   int
	Newest   time.Time
	Duration time.Duration
	Err      error
}

// AccountRow is one line of the account listing.
type AccountRow struct {
	Login       string
	Status      string
	FailCount   int
	HasSession  bool
	LastChecked *time.Time
}

// ProxyRow is one line of the proxy check output.
type ProxyRow struct {
	Address   string
	Healthy   bool
	FailCount int
	Latency   time.Duration
	Err       error
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// RenderTargets renders the per-target results of a collect run.
func RenderTargets(rows []TargetRow) string {
	t := newTable("TARGET", "POSTS", "FAILED", "NEWEST", "TIME", "STATUS")
	for _, r := range rows {
		status := Green("ok")
		if r.Err != nil {
			status = Red(r.Err.Error())
		}
		t.Row(
			r.Username,
			strconv.Itoa(r.Posts),
			strconv.Itoa(r.Failed),
			formatTime(&r.Newest),
			r.Duration.Round(time.Millisecond).String(),
			status,
		)
	}
	return t.Render()
}

// RenderAccounts renders the account pool.
func RenderAccounts(rows []AccountRow) string {
	t := newTable("LOGIN", "STATUS", "FAILS", "SESSION", "LAST CHECKED")
	for _, r := range rows {
		status := r.Status
		if status == "working" {
			status = Green(status)
		} else {
			status = Yellow(status)
		}
		session := Dim("no")
		if r.HasSession {
			session = "yes"
		}
		t.Row(r.Login, status, strconv.Itoa(r.FailCount), session, formatTime(r.LastChecked))
	}
	return t.Render()
}

// RenderProxies renders the result of a proxy check.
func RenderProxies(rows []ProxyRow) string {
	t := newTable("PROXY", "HEALTH", "FAILS", "LATENCY")
	for _, r := range rows {
		health := Green("up")
		latency := r.Latency.Round(time.Millisecond).String()
		if !r.Healthy {
			health = Red("down")
			if r.Err != nil {
				latency = Dim(r.Err.Error())
			}
		}
		t.Row(r.Address, health, strconv.Itoa(r.FailCount), latency)
	}
	return t.Render()
}

// Totals formats a one-line batch summary.
func Totals(done, failed, posts int, elapsed time.Duration) string {
	return fmt.Sprintf("%s %d targets, %d posts, %d failed in %s",
		Cyan("Total:"), done, posts, failed, elapsed.Round(time.Second))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Dim("-")
	}
	return t.Local().Format("2006-01-02 15:04")
}
