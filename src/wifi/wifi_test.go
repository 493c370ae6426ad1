package wifi

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/powermeter/src/link"
)

const wirelessStats = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
 wlan0: 0000   70.  -42.  -256        0      0      0      0      0        0
`

func newFakeRoot(t *testing.T, operstate, wireless string) *SysfsLink {
	t.Helper()
	root := t.TempDir()

	netDir := filepath.Join(root, "sys", "class", "net", "wlan0")
	require.NoError(t, os.MkdirAll(netDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(netDir, "operstate"), []byte(operstate+"\n"), 0644))

	procDir := filepath.Join(root, "proc", "net")
	require.NoError(t, os.MkdirAll(procDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(procDir, "wireless"), []byte(wireless), 0644))

	l := NewSysfsLink("wlan0", nil)
	l.sysRoot = filepath.Join(root, "sys")
	l.procRoot = filepath.Join(root, "proc")
	return l
}

func TestParseWireless(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		iface   string
		want    int
		wantErr bool
	}{
		{name: "found", input: wirelessStats, iface: "wlan0", want: -42},
		{name: "missing interface", input: wirelessStats, iface: "wlan1", wantErr: true},
		{name: "header only", input: strings.Join(strings.Split(wirelessStats, "\n")[:2], "\n"), iface: "wlan0", wantErr: true},
		{name: "short line", input: "wlan0: 0000 70.\n", iface: "wlan0", wantErr: true},
		{name: "bad level", input: "wlan0: 0000 70. abc. -256\n", iface: "wlan0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWireless(bufio.NewScanner(strings.NewReader(tt.input)), tt.iface)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSysfsLink_Up(t *testing.T) {
	l := newFakeRoot(t, "up", wirelessStats)

	assert.True(t, l.Connected())
	require.NoError(t, l.Connect(context.Background()))

	dbm, err := l.SignalStrength()
	require.NoError(t, err)
	assert.Equal(t, -42, dbm)
}

func TestSysfsLink_DownIsNetworkUnreachable(t *testing.T) {
	l := newFakeRoot(t, "down", wirelessStats)

	err := l.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, link.ErrLinkDown)
	assert.Equal(t, link.NetworkUnreachable, link.Classify(err).Kind)
}

func TestSysfsLink_ConnectCommandFails(t *testing.T) {
	l := newFakeRoot(t, "up", wirelessStats)
	l.ConnectCommand = []string{"false"}

	assert.Error(t, l.Connect(context.Background()))
}

type signalRecorder struct {
	samples []int
}

func (r *signalRecorder) SetSignalStrength(dbm int) {
	r.samples = append(r.samples, dbm)
}

func TestDuty_SamplesEveryPeriod(t *testing.T) {
	network := NewSimulatedLink(0, -61)
	sink := &signalRecorder{}
	duty := NewDuty(network, sink, 10*time.Second)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, duty.Connect(ctx))
	for i := range 25 {
		require.NoError(t, duty.Serve(ctx, start.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, []int{-61, -61, -61}, sink.samples)
}

func TestDuty_FailedSampleIsDrop(t *testing.T) {
	network := NewSimulatedLink(0, -61)
	duty := NewDuty(network, &signalRecorder{}, time.Second)
	ctx := context.Background()

	require.NoError(t, duty.Connect(ctx))
	network.Drop()

	assert.False(t, duty.Connected())
	assert.ErrorIs(t, duty.Serve(ctx, time.Now()), link.ErrLinkDown)
}

func TestDuty_InMachine(t *testing.T) {
	network := NewSimulatedLink(2, -48)
	sink := &signalRecorder{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var seen []link.State
	m := link.New("wifi", NewDuty(network, sink, 10*time.Second), link.Backoff{Min: time.Second, Max: 4 * time.Second, Exponential: true},
		link.WithClock(func() time.Time { return now }),
		link.WithObserver(func(tr link.Transition) { seen = append(seen, tr.To) }),
	)

	for range 10 {
		m.Tick(context.Background())
		now = now.Add(time.Second)
	}

	assert.Equal(t, []link.State{link.Connecting, link.Reconnecting, link.Reconnecting, link.Connected}, seen)
	assert.Equal(t, 3, network.Attempts())
	assert.NotEmpty(t, sink.samples)
}
