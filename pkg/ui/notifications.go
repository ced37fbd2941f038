package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification.
type NotificationSender interface {
	Send(title, message string) error
}

// CommandSender runs an external notifier binary.
type CommandSender struct {
	build func(title, message string) *exec.Cmd
}

func (c *CommandSender) Send(title, message string) error {
	return c.build(title, message).Run()
}

// PlatformSender returns the sender for the current OS, or nil when unsupported.
func PlatformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &CommandSender{build: func(title, message string) *exec.Cmd {
			return exec.Command("notify-send", "--app-name=igtail", title, message)
		}}
	case "darwin":
		return &CommandSender{build: func(title, message string) *exec.Cmd {
			script := fmt.Sprintf(`display notification %q with title %q`, message, title)
			return exec.Command("osascript", "-e", script)
		}}
	default:
		return nil
	}
}

// Notifier reports batch events on the console and, if a sender is set, the desktop.
type Notifier struct {
	sender NotificationSender
	out    io.Writer
}

// NewNotifier creates a Notifier. A nil sender only writes to out.
func NewNotifier(sender NotificationSender, out io.Writer) *Notifier {
	return &Notifier{sender: sender, out: out}
}

func (n *Notifier) send(title, message string, color func(string) string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", color(title), color(message))
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}

// BatchFinished announces the end of a collect run.
func (n *Notifier) BatchFinished(done, failed, posts int) {
	msg := fmt.Sprintf("%d targets, %d posts, %d failed", done, posts, failed)
	if failed > 0 {
		n.send("Collection finished with errors", msg, Yellow)
		return
	}
	n.send("Collection finished", msg, Green)
}

// NoWorkingAccounts warns that the account pool is exhausted.
func (n *Notifier) NoWorkingAccounts(total int) {
	n.send("No working accounts", fmt.Sprintf("all %d accounts are unusable", total), Red)
}
