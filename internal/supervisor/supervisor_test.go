package supervisor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glizzus/voicebridge/internal/host/hosttest"
	"github.com/glizzus/voicebridge/internal/supervisor"
)

func writeConfig(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voicebridge.yml")
	raw := []byte(`
guild_id: "12345"
category_id: "67890"
bot_tokens: [test-token]
bot_user_ids: [100]
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("VOICEBRIDGE_CONFIG", path)
}

func TestNewFailsWithoutConfig(t *testing.T) {
	t.Setenv("VOICEBRIDGE_CONFIG", filepath.Join(t.TempDir(), "missing.yml"))
	if _, err := supervisor.New(context.Background(), hosttest.NewAdapter()); err == nil {
		t.Error("New() without a config file succeeded, want error")
	}
}

func TestCommandGating(t *testing.T) {
	writeConfig(t)
	adapter := hosttest.NewAdapter()
	sup, err := supervisor.New(context.Background(), adapter)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	caller, _ := adapter.AddPlayer("randomplayer")

	tests := []struct {
		name    string
		command string
		args    string
		isOp    bool
		want    string
	}{
		{
			name:    "reloadconfig denied for non-op",
			command: "reloadconfig",
			want:    "You do not have permission to reload the config.",
		},
		{
			name:    "stop outside a group",
			command: "stop",
			isOp:    true,
			want:    "You are not in a bridged group.",
		},
		{
			name:    "restart outside a group",
			command: "restart",
			isOp:    true,
			want:    "You are not in a bridged group.",
		},
		{
			name:    "message outside a group",
			command: "message",
			args:    "hello",
			want:    "You are not in a bridged group.",
		},
		{
			name:    "message without text",
			command: "message",
			want:    "Usage: message <text>",
		},
		{
			name:    "unknown command",
			command: "frobnicate",
			want:    "Unknown command: frobnicate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(adapter.Messages(caller))
			sup.Command(caller, tt.isOp, tt.command, tt.args)
			messages := adapter.Messages(caller)
			if len(messages) != before+1 {
				t.Fatalf("got %d new messages, want 1", len(messages)-before)
			}
			if got := messages[len(messages)-1]; got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReloadConfigAsOperator(t *testing.T) {
	writeConfig(t)
	adapter := hosttest.NewAdapter()
	sup, err := supervisor.New(context.Background(), adapter)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	op, _ := adapter.AddPlayer("operator")
	sup.Command(op, true, "reloadconfig", "")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		messages := adapter.Messages(op)
		if len(messages) > 0 {
			if got := messages[len(messages)-1]; got != "Config reloaded." {
				t.Fatalf("reply = %q, want %q", got, "Config reloaded.")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for reload reply")
}

func TestShutdownStopsTicker(t *testing.T) {
	writeConfig(t)
	sup, err := supervisor.New(context.Background(), hosttest.NewAdapter())
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	sup.Start()

	done := make(chan struct{})
	go func() {
		sup.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown() did not return")
	}
}

func TestShutdownWithoutStartReturns(t *testing.T) {
	writeConfig(t)
	sup, err := supervisor.New(context.Background(), hosttest.NewAdapter())
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		sup.Shutdown()
		sup.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown() without Start() did not return")
	}
}
