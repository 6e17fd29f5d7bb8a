package devicemon

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"confcap/internal/logging"
	"confcap/internal/testsupport"
)

func TestNew(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := New(nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("watching disabled returns nil", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		if m := New(cfg, nil, nil); m != nil {
			t.Error("expected nil monitor when watch_devices is false")
		}
	})

	t.Run("watching enabled creates monitor", func(t *testing.T) {
		cfg := testsupport.NewConfig(t)
		cfg.Sources.WatchDevices = true
		m := New(cfg, nil, nil)
		if m == nil {
			t.Fatal("expected non-nil monitor")
		}
		if m.settle != DefaultSettle {
			t.Errorf("settle = %v, want %v", m.settle, DefaultSettle)
		}
		if m.Running() {
			t.Error("unstarted monitor reports running")
		}
	})
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *Monitor
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor: %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Error("nil monitor reports running")
	}
}

func TestStopBeforeStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sources.WatchDevices = true
	m := New(cfg, nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("expected Running() false after Stop")
	}
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()
	for _, action := range []netlink.KObjAction{netlink.ADD, netlink.REMOVE, netlink.CHANGE} {
		ev := netlink.UEvent{Action: action, Env: map[string]string{"SUBSYSTEM": "sound"}}
		if !matcher.Evaluate(ev) {
			t.Errorf("expected matcher to accept %s sound event", action)
		}
	}
	block := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}
	if matcher.Evaluate(block) {
		t.Error("expected matcher to reject block subsystem")
	}
}

func TestDeviceName(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"devname", map[string]string{"DEVNAME": "snd/pcmC1D0c"}, "snd/pcmC1D0c"},
		{"devpath fallback", map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-2/sound/card1"}, "card1"},
		{"missing", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviceName(netlink.UEvent{Env: tt.env}); got != tt.want {
				t.Errorf("deviceName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleEventDispatchesImmediatelyWithoutSettle(t *testing.T) {
	var got []Change
	m := &Monitor{
		logger:  testLogger(),
		handler: func(_ context.Context, c Change) { got = append(got, c) },
	}
	m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "snd/controlC1"}})
	m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{}})

	if len(got) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(got))
	}
	if got[0].Device != "snd/controlC1" || got[0].Action != "add" || got[0].Events != 1 {
		t.Fatalf("unexpected change: %+v", got[0])
	}
}

func TestHandleEventCoalescesBurst(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []Change
		done  = make(chan struct{}, 1)
	)
	m := &Monitor{
		logger: testLogger(),
		settle: 20 * time.Millisecond,
		handler: func(_ context.Context, c Change) {
			mu.Lock()
			calls = append(calls, c)
			mu.Unlock()
			done <- struct{}{}
		},
	}
	for _, dev := range []string{"snd/controlC1", "snd/pcmC1D0c", "snd/pcmC1D0p"} {
		m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": dev}})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(calls))
	}
	if calls[0].Events != 3 || calls[0].Device != "snd/pcmC1D0p" {
		t.Fatalf("unexpected change: %+v", calls[0])
	}
}

func TestHandleEventSkipsCancelledContext(t *testing.T) {
	called := false
	m := &Monitor{
		logger:  testLogger(),
		handler: func(context.Context, Change) { called = true },
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.handleEvent(ctx, netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "snd/controlC1"}})
	if called {
		t.Error("handler called after context cancellation")
	}
}

func testLogger() *slog.Logger { return logging.NewNop() }
