package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/powermeter/src/display"
	"github.com/ryansname/powermeter/src/link"
)

type staticStatus link.Status

func (s staticStatus) Status() link.Status { return link.Status(s) }

func newCapturingDebugState(links ...statusSource) (*DebugState, *[]string) {
	var lines []string
	s := NewDebugState(links)
	s.out = func(line string) { lines = append(lines, line) }
	return s, &lines
}

func TestDebugState_AddWatch(t *testing.T) {
	s, _ := newCapturingDebugState()

	assert.Error(t, s.AddWatch("volts"))
	require.NoError(t, s.AddWatch("watts"))
	require.NoError(t, s.AddWatch("amps"))
	require.NoError(t, s.AddWatch("amps"))

	assert.Equal(t, []string{"amps", "watts"}, s.watches)

	assert.True(t, s.RemoveWatch("amps"))
	assert.False(t, s.RemoveWatch("amps"))
	assert.Equal(t, []string{"watts"}, s.watches)
}

func TestDebugState_PrintRowOnlyOnChange(t *testing.T) {
	s, lines := newCapturingDebugState()
	require.NoError(t, s.AddWatch("amps"))
	require.NoError(t, s.AddWatch("phase"))

	snap := display.Snapshot{Amps: 1.5, Phase: display.Running}
	s.PrintRow(snap)
	require.Len(t, *lines, 2)
	assert.Equal(t, "amps | phase", (*lines)[0])

	s.PrintRow(snap)
	assert.Len(t, *lines, 2)

	snap.Amps = 2.25
	s.PrintRow(snap)
	require.Len(t, *lines, 3)
	assert.Contains(t, (*lines)[2], "2.25")
	assert.Contains(t, (*lines)[2], ansiYellow+"2.25"+ansiReset)
}

func TestDebugState_PrintLinks(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, lines := newCapturingDebugState(
		staticStatus{Name: "wifi", State: link.Connected},
		staticStatus{
			Name:        "cloud",
			State:       link.Reconnecting,
			Retries:     3,
			NextAttempt: now.Add(4 * time.Second),
			LastErr:     errors.New("tls: bad certificate"),
		},
	)

	s.PrintLinks(now)

	require.Len(t, *lines, 2)
	assert.True(t, strings.HasPrefix(strings.TrimSpace((*lines)[0]), "wifi"))
	assert.Contains(t, (*lines)[0], "Connected")
	assert.Contains(t, (*lines)[1], "retries=3")
	assert.Contains(t, (*lines)[1], "next=4s")
	assert.Contains(t, (*lines)[1], `last_err="tls: bad certificate"`)
}

func TestHandleDebugCommand_Status(t *testing.T) {
	s, lines := newCapturingDebugState()

	handleDebugCommand("status", s, display.Snapshot{ClockText: "07:15", Watts: 1234.4, BufferFill: 4, BufferCap: 30})

	out := strings.Join(*lines, "\n")
	assert.Contains(t, out, "07:15")
	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "4/30")
}

func TestHandleDebugCommand_Watch(t *testing.T) {
	s, _ := newCapturingDebugState()

	handleDebugCommand("watch rssi clock", s, display.Snapshot{})
	assert.Equal(t, []string{"clock", "rssi"}, s.watches)

	handleDebugCommand("unwatch --all", s, display.Snapshot{})
	assert.Empty(t, s.watches)
}

func TestSendCommand(t *testing.T) {
	ch := make(chan string, 1)
	assert.True(t, sendCommand(context.Background(), ch, "status"))
	assert.Equal(t, "status", <-ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool)
	go func() { done <- sendCommand(ctx, make(chan string), "status") }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send blocked after the worker stopped")
	}
}
