package wifi

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ryansname/powermeter/src/link"
)

// SysfsLink reads link state from Linux sysfs and procfs. Association is left to
// the system's supplicant; Connect only runs an optional command and then
// checks the interface came up.
type SysfsLink struct {
	Interface      string
	ConnectCommand []string
	ConnectTimeout time.Duration

	sysRoot  string
	procRoot string
}

// Ensure SysfsLink implements Link
var _ Link = (*SysfsLink)(nil)

func NewSysfsLink(iface string, connectCommand []string) *SysfsLink {
	return &SysfsLink{
		Interface:      iface,
		ConnectCommand: connectCommand,
		ConnectTimeout: 15 * time.Second,
		sysRoot:        "/sys",
		procRoot:       "/proc",
	}
}

func (l *SysfsLink) Connect(ctx context.Context) error {
	if len(l.ConnectCommand) > 0 {
		ctx, cancel := context.WithTimeout(ctx, l.ConnectTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, l.ConnectCommand[0], l.ConnectCommand[1:]...)
		if out, err := cmd.CombinedOutput(); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("connect command timed out: %w", ctx.Err())
			}
			return fmt.Errorf("connect command failed: %w: %s", err, strings.TrimSpace(string(out)))
		}
	}

	if !l.Connected() {
		return fmt.Errorf("%s is not up: %w", l.Interface, link.ErrLinkDown)
	}
	return nil
}

// Connected reports whether the kernel has the interface operationally up
func (l *SysfsLink) Connected() bool {
	data, err := os.ReadFile(filepath.Join(l.sysRoot, "class", "net", l.Interface, "operstate"))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "up"
}

func (l *SysfsLink) SignalStrength() (int, error) {
	f, err := os.Open(filepath.Join(l.procRoot, "net", "wireless"))
	if err != nil {
		return 0, fmt.Errorf("failed to read wireless stats: %w", err)
	}
	defer f.Close()

	return parseWireless(bufio.NewScanner(f), l.Interface)
}

// parseWireless finds iface in /proc/net/wireless and returns its signal level
//
//	Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
//	 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
//	 wlan0: 0000   70.  -40.  -256        0      0      0      0      0        0
func parseWireless(scanner *bufio.Scanner, iface string) (int, error) {
	prefix := iface + ":"
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, prefix))
		if len(fields) < 3 {
			return 0, fmt.Errorf("short wireless stats line for %s", iface)
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("bad signal level %q: %w", fields[2], err)
		}
		return int(level), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%s: %w", iface, ErrNoSignal)
}
