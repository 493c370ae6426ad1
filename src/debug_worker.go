package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/ryansname/powermeter/src/display"
	"github.com/ryansname/powermeter/src/link"
)

// debugFields maps watchable names to their value in a snapshot
var debugFields = map[string]func(display.Snapshot) string{
	"clock":  func(s display.Snapshot) string { return s.ClockText },
	"amps":   func(s display.Snapshot) string { return display.FormatAmps(s.Amps) },
	"watts":  func(s display.Snapshot) string { return display.FormatWatts(s.Watts) },
	"rssi":   func(s display.Snapshot) string { return strconv.Itoa(s.WiFiStrengthDbm) },
	"phase":  func(s display.Snapshot) string { return s.Phase.String() },
	"buffer": func(s display.Snapshot) string { return fmt.Sprintf("%d/%d", s.BufferFill, s.BufferCap) },
}

// ANSI color codes for highlighting changes
const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m"
)

// readlineWriter wraps log output to work with readline
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err = os.Stderr.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

// Global readline writer for log output
var rlWriter = &readlineWriter{}

// statusSource is the read side of a link.Machine
type statusSource interface {
	Status() link.Status
}

// DebugState manages the list of watched fields
type DebugState struct {
	watches       []string
	headerPrinted bool
	columnWidths  []int
	prevValues    map[string]string
	links         []statusSource
	rl            *readline.Instance
	out           func(line string)
}

// NewDebugState creates a new debug state
func NewDebugState(links []statusSource) *DebugState {
	s := &DebugState{
		prevValues: make(map[string]string),
		links:      links,
	}
	s.out = s.printLine
	return s
}

// SetReadline sets the readline instance for proper output handling
func (s *DebugState) SetReadline(rl *readline.Instance) {
	s.rl = rl
}

func (s *DebugState) printLine(line string) {
	if s.rl != nil {
		s.rl.Clean()
		fmt.Println(line)
		s.rl.Refresh()
	} else {
		fmt.Println(line)
	}
}

func (s *DebugState) print(format string, args ...any) {
	s.out(fmt.Sprintf(format, args...))
}

// AddWatch adds a field and keeps the list sorted
func (s *DebugState) AddWatch(field string) error {
	if _, ok := debugFields[field]; !ok {
		return fmt.Errorf("unknown field %q (try 'list')", field)
	}
	if slices.Contains(s.watches, field) {
		log.Printf("Already watching: %s\n", field)
		return nil
	}

	s.watches = append(s.watches, field)
	slices.Sort(s.watches)
	s.headerPrinted = false
	log.Printf("Watching: %s\n", field)
	return nil
}

// RemoveWatch removes a watched field
func (s *DebugState) RemoveWatch(field string) bool {
	i := slices.Index(s.watches, field)
	if i < 0 {
		log.Printf("No watch found for: %s\n", field)
		return false
	}
	s.watches = slices.Delete(s.watches, i, i+1)
	s.headerPrinted = false
	log.Printf("Unwatched: %s\n", field)
	return true
}

// RemoveAll removes all watches
func (s *DebugState) RemoveAll() {
	s.watches = s.watches[:0]
	s.headerPrinted = false
	log.Println("All watches removed")
}

// ListFields prints the watchable fields
func (s *DebugState) ListFields() {
	names := make([]string, 0, len(debugFields))
	for name := range debugFields {
		names = append(names, name)
	}
	slices.Sort(names)

	s.print("Fields (%d):", len(names))
	for _, name := range names {
		s.print("  %s", name)
	}
}

// PrintStatus prints every field of snap
func (s *DebugState) PrintStatus(snap display.Snapshot) {
	names := make([]string, 0, len(debugFields))
	for name := range debugFields {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		s.print("  %-6s %s", name, debugFields[name](snap))
	}
}

// PrintLinks prints each connection state machine's bookkeeping
func (s *DebugState) PrintLinks(now time.Time) {
	for _, l := range s.links {
		st := l.Status()
		line := fmt.Sprintf("  %-16s %-12s retries=%d", st.Name, st.State, st.Retries)
		if st.State == link.Reconnecting && st.NextAttempt.After(now) {
			line += fmt.Sprintf(" next=%v", st.NextAttempt.Sub(now).Round(time.Second))
		}
		if st.LastErr != nil {
			line += fmt.Sprintf(" last_err=%q", st.LastErr.Error())
		}
		s.print("%s", line)
	}
}

// PrintHeader prints the column headers
func (s *DebugState) PrintHeader() {
	if len(s.watches) == 0 {
		return
	}

	s.columnWidths = make([]int, len(s.watches))
	parts := make([]string, 0, len(s.watches))
	for i, w := range s.watches {
		s.columnWidths[i] = len(w)
		parts = append(parts, fmt.Sprintf("%*s", s.columnWidths[i], w))
	}
	s.print("%s", strings.Join(parts, " | "))
	s.headerPrinted = true
	s.prevValues = make(map[string]string)
}

// PrintRow prints the current values for all watches (only if changed)
func (s *DebugState) PrintRow(snap display.Snapshot) {
	if len(s.watches) == 0 {
		return
	}

	if !s.headerPrinted {
		s.PrintHeader()
	}

	parts := make([]string, 0, len(s.watches))
	anyChanged := false
	newValues := make(map[string]string, len(s.watches))

	for i, w := range s.watches {
		value := debugFields[w](snap)
		newValues[w] = value

		width := max(s.columnWidths[i], len(value))
		s.columnWidths[i] = width

		prevValue, hasPrev := s.prevValues[w]
		if !hasPrev || prevValue != value {
			anyChanged = true
			parts = append(parts, fmt.Sprintf("%s%*s%s", ansiYellow, width, value, ansiReset))
		} else {
			parts = append(parts, fmt.Sprintf("%*s", width, value))
		}
	}

	if anyChanged {
		s.print("%s", strings.Join(parts, " | "))
		s.prevValues = newValues
	}
}

// handleDebugCommand processes a debug command
func handleDebugCommand(cmd string, state *DebugState, snap display.Snapshot) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "status":
		state.PrintStatus(snap)

	case "links":
		state.PrintLinks(time.Now())

	case "list":
		state.ListFields()

	case "watch":
		if len(parts) < 2 {
			log.Println("Usage: watch <field>...")
			return
		}
		for _, field := range parts[1:] {
			if err := state.AddWatch(field); err != nil {
				log.Printf("Error: %v\n", err)
			}
		}

	case "unwatch":
		if len(parts) < 2 {
			log.Println("Usage: unwatch <field> | unwatch --all")
			return
		}
		if parts[1] == "--all" {
			state.RemoveAll()
			return
		}
		for _, field := range parts[1:] {
			state.RemoveWatch(field)
		}

	case "help":
		state.print("Commands:")
		state.print("  status             - Show every display field")
		state.print("  links              - Show connection state machines")
		state.print("  list               - List watchable fields")
		state.print("  watch <field>...   - Print a row whenever a field changes")
		state.print("  unwatch <field>... - Remove watches")
		state.print("  unwatch --all      - Remove all watches")
		state.print("  help               - Show this help")

	default:
		log.Printf("Unknown command: %s (try 'help')\n", parts[0])
	}
}

// readlineLoop runs the readline loop, sending commands to the channel
func readlineLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	rl *readline.Instance,
	commandChan chan<- string,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel()
			return
		}
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !sendCommand(ctx, commandChan, line) {
			return
		}
	}
}

// sendCommand hands line to the worker. It returns false once ctx is done, as
// nothing reads the channel after the worker exits.
func sendCommand(ctx context.Context, commandChan chan<- string, line string) bool {
	select {
	case commandChan <- line:
		return true
	case <-ctx.Done():
		return false
	}
}

// getHistoryFilePath returns the path for debug history file
func getHistoryFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "powermeter")
	_ = os.MkdirAll(dir, 0750)
	return filepath.Join(dir, "debug_history")
}

// debugWorker provides interactive introspection of the display state and
// the connection state machines
func debugWorker(ctx context.Context, cancel context.CancelFunc, state *display.State, links []statusSource) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: getHistoryFilePath(),
	})
	if err != nil {
		log.Printf("Debug worker: readline init failed: %v\n", err)
		return
	}
	defer func() {
		_ = rl.Close()
		rlWriter.rl = nil
		log.SetOutput(os.Stderr)
	}()

	rlWriter.rl = rl
	log.SetOutput(rlWriter)

	log.Println("Debug worker started (type 'help' for commands)")

	commandChan := make(chan string, 10)
	debug := NewDebugState(links)
	debug.SetReadline(rl)

	go readlineLoop(ctx, cancel, rl, commandChan)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-commandChan:
			handleDebugCommand(cmd, debug, state.Snapshot())
		case <-ticker.C:
			debug.PrintRow(state.Snapshot())
		case <-ctx.Done():
			log.Println("Debug worker stopped")
			return
		}
	}
}
