package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTracker(t *testing.T) {
	var buf bytes.Buffer
	st := NewStatusTracker(4, &buf)

	st.Record("natgeo", 12, nil)
	st.Record("nasa", 0, errors.New("proxy break"))

	done, failed, posts := st.Counts()
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 12, posts)
	assert.Contains(t, st.Progress(), "2/4")
	assert.Equal(t, 10, strings.Count(st.Progress(), ProgressBar))

	out := buf.String()
	assert.Contains(t, out, "natgeo")
	assert.Contains(t, out, "nasa")
}

func TestStatusTrackerEmptyBatch(t *testing.T) {
	st := NewStatusTracker(0, &bytes.Buffer{})
	assert.Contains(t, st.Progress(), "0/0")
	assert.Equal(t, 0, strings.Count(st.Progress(), ProgressBar))
}

func TestRenderTargets(t *testing.T) {
	out := RenderTargets([]TargetRow{
		{Username: "natgeo", Posts: 3, Failed: 1, Newest: time.Unix(1700000000, 0), Duration: 1500 * time.Millisecond},
		{Username: "nasa", Err: errors.New("account blocked")},
	})

	for _, want := range []string{"TARGET", "natgeo", "nasa", "account blocked", "1.5s"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderAccounts(t *testing.T) {
	checked := time.Now()
	out := RenderAccounts([]AccountRow{
		{Login: "alice", Status: "working", HasSession: true, LastChecked: &checked},
		{Login: "bob", Status: "challenge", FailCount: 2},
	})

	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "challenge")
	assert.Contains(t, out, "yes")
}

func TestRenderProxies(t *testing.T) {
	out := RenderProxies([]ProxyRow{
		{Address: "direct", Healthy: true, Latency: 120 * time.Millisecond},
		{Address: "http://10.0.0.1:8080", FailCount: 3, Err: errors.New("timeout")},
	})

	assert.Contains(t, out, "direct")
	assert.Contains(t, out, "120ms")
	assert.Contains(t, out, "timeout")
}

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return errors.New("no display")
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	sender := &recordingSender{}
	n := NewNotifier(sender, &buf)

	n.BatchFinished(3, 0, 40)
	n.BatchFinished(3, 1, 20)
	n.NoWorkingAccounts(2)

	require.Len(t, sender.titles, 3)
	assert.Equal(t, "Collection finished", sender.titles[0])
	assert.Equal(t, "Collection finished with errors", sender.titles[1])
	assert.Contains(t, buf.String(), "all 2 accounts are unusable")
}

func TestNotifierWithoutSender(t *testing.T) {
	var buf bytes.Buffer
	NewNotifier(nil, &buf).BatchFinished(1, 0, 5)
	assert.Contains(t, buf.String(), "1 targets, 5 posts, 0 failed")
}
