package unit_test

import (
	"errors"
	"testing"

	"github.com/luciancaetano/hixienet"
)

// TestConstants verifies that all constants are defined with expected values
func TestConstants(t *testing.T) {
	t.Parallel()

	t.Run("protocol", func(t *testing.T) {
		if hixienet.UpgradeToken != "WebSocket" {
			t.Errorf("UpgradeToken = %q, want WebSocket", hixienet.UpgradeToken)
		}
		if hixienet.DefaultHost != "localhost" {
			t.Errorf("DefaultHost = %q, want localhost", hixienet.DefaultHost)
		}
		if hixienet.ListenBacklog != 5 {
			t.Errorf("ListenBacklog = %d, want 5", hixienet.ListenBacklog)
		}
	})

	t.Run("errors", func(t *testing.T) {
		errs := []struct {
			name string
			err  error
		}{
			{"ErrClientNotFound", hixienet.ErrClientNotFound},
			{"ErrConnectionClosed", hixienet.ErrConnectionClosed},
			{"ErrServerAlreadyRunning", hixienet.ErrServerAlreadyRunning},
			{"ErrServerNotRunning", hixienet.ErrServerNotRunning},
			{"ErrRateLimited", hixienet.ErrRateLimited},
			{"ErrOriginRejected", hixienet.ErrOriginRejected},
		}

		for i, e := range errs {
			if e.err == nil || e.err.Error() == "" {
				t.Errorf("%s should have a message", e.name)
			}
			for _, other := range errs[i+1:] {
				if errors.Is(e.err, other.err) {
					t.Errorf("%s and %s should be distinct", e.name, other.name)
				}
			}
		}
	})
}

// TestStates verifies state names and which states are terminal
func TestStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    hixienet.State
		name     string
		terminal bool
	}{
		{hixienet.NotConnected, "not-connected", true},
		{hixienet.ConnectionEstablished, "connection-established", false},
		{hixienet.Ready, "ready", false},
		{hixienet.Disconnected, "disconnected", true},
		{hixienet.State(42), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}
