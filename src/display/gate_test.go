package display

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ryansname/powermeter/src/link"
)

func tr(from, to link.State) link.Transition {
	return link.Transition{From: from, To: to}
}

func TestPhaseGate_Scenarios(t *testing.T) {
	type step struct {
		role Role
		t    link.Transition
		want AppPhase
	}

	tests := []struct {
		name         string
		cloudEnabled bool
		localEnabled bool
		steps        []step
	}{
		{
			name:         "happy path",
			cloudEnabled: true,
			steps: []step{
				{RoleWiFi, tr(link.Disconnected, link.Connecting), ConnectingWiFi},
				{RoleWiFi, tr(link.Connecting, link.Connected), ConnectingCloud},
				{RoleCloud, tr(link.Disconnected, link.Connecting), ConnectingCloud},
				{RoleCloud, tr(link.Connecting, link.Connected), Running},
			},
		},
		{
			name:         "wifi retries hold ConnectingWiFi",
			cloudEnabled: true,
			steps: []step{
				{RoleWiFi, tr(link.Disconnected, link.Connecting), ConnectingWiFi},
				{RoleWiFi, tr(link.Connecting, link.Reconnecting), ConnectingWiFi},
				{RoleWiFi, tr(link.Reconnecting, link.Reconnecting), ConnectingWiFi},
				{RoleWiFi, tr(link.Reconnecting, link.Reconnecting), ConnectingWiFi},
				{RoleWiFi, tr(link.Reconnecting, link.Connected), ConnectingCloud},
			},
		},
		{
			name: "cloud disabled skips ConnectingCloud",
			steps: []step{
				{RoleWiFi, tr(link.Disconnected, link.Connecting), ConnectingWiFi},
				{RoleWiFi, tr(link.Connecting, link.Connected), Running},
			},
		},
		{
			name:         "local broker only never enters ConnectingCloud",
			localEnabled: true,
			steps: []step{
				{RoleWiFi, tr(link.Disconnected, link.Connecting), ConnectingWiFi},
				{RoleLocal, tr(link.Disconnected, link.Connecting), ConnectingWiFi},
				{RoleWiFi, tr(link.Connecting, link.Connected), ConnectingWiFi},
				{RoleLocal, tr(link.Connecting, link.Reconnecting), ConnectingWiFi},
				{RoleLocal, tr(link.Reconnecting, link.Connected), Running},
			},
		},
		{
			name:         "pending local broker holds the phase",
			cloudEnabled: true,
			localEnabled: true,
			steps: []step{
				{RoleWiFi, tr(link.Disconnected, link.Connecting), ConnectingWiFi},
				{RoleLocal, tr(link.Disconnected, link.Connecting), ConnectingWiFi},
				{RoleWiFi, tr(link.Connecting, link.Connected), ConnectingCloud},
				{RoleCloud, tr(link.Connecting, link.Connected), ConnectingCloud},
				{RoleLocal, tr(link.Connecting, link.Connected), Running},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState()
			gate := NewPhaseGate(state, tt.cloudEnabled, tt.localEnabled)
			for i, s := range tt.steps {
				gate.Observer(s.role)(s.t)
				assert.Equal(t, s.want, state.Phase(), "step %d", i)
			}
		})
	}
}

func TestPhaseGate_RunningIsLatched(t *testing.T) {
	state := NewState()
	gate := NewPhaseGate(state, true, false)

	gate.Observer(RoleWiFi)(tr(link.Connecting, link.Connected))
	gate.Observer(RoleCloud)(tr(link.Connecting, link.Connected))
	assert.True(t, gate.Running())

	gate.Observer(RoleWiFi)(tr(link.Connected, link.Reconnecting))
	gate.Observer(RoleCloud)(tr(link.Connected, link.Reconnecting))
	gate.Observer(RoleWiFi)(tr(link.Reconnecting, link.Reconnecting))

	assert.Equal(t, Running, state.Phase())
}
