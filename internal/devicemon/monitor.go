package devicemon

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"confcap/internal/config"
	"confcap/internal/logging"
)

// DefaultSettle is how long the monitor waits after the last uevent before
// calling the handler. A single card plug produces a burst of events.
const DefaultSettle = 500 * time.Millisecond

// Change summarizes a burst of sound subsystem events.
type Change struct {
	Action string
	Device string
	Events int
}

// Handler reacts to a settled change.
type Handler func(ctx context.Context, change Change)

// Monitor listens for udev netlink events on the sound subsystem.
type Monitor struct {
	logger  *slog.Logger
	handler Handler
	settle  time.Duration

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool

	pendingMu sync.Mutex
	pending   Change
	timer     *time.Timer
}

// New returns nil when device watching is disabled in cfg.
func New(cfg *config.Config, logger *slog.Logger, handler Handler) *Monitor {
	if cfg == nil || !cfg.Sources.WatchDevices {
		return nil
	}
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "device-monitor"),
		handler: handler,
		settle:  DefaultSettle,
	}
}

// Start begins listening. Connection failures are logged and leave the
// monitor stopped; sources then only reopen on manual refresh.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; device hotplug will not reopen sources",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "replugged microphones need a manual track refresh"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("device monitor started",
		logging.String(logging.FieldEventType, "device_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor and drops any pending change.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.pendingMu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = Change{}
	m.pendingMu.Unlock()

	m.logger.Info("device monitor stopped",
		logging.String(logging.FieldEventType, "device_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device hotplug may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=sound with ACTION add, remove, or change.
func buildMatcher() netlink.Matcher {
	action := "add|remove|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "sound",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	device := deviceName(uevent)
	if device == "" {
		m.logger.Debug("ignoring sound event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	m.logger.Debug("sound device event",
		logging.String("device", device),
		logging.String("action", string(uevent.Action)),
	)

	m.pendingMu.Lock()
	m.pending.Action = string(uevent.Action)
	m.pending.Device = device
	m.pending.Events++
	if m.settle <= 0 {
		change := m.pending
		m.pending = Change{}
		m.pendingMu.Unlock()
		m.dispatch(ctx, change)
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.settle, func() {
		m.pendingMu.Lock()
		change := m.pending
		m.pending = Change{}
		m.timer = nil
		m.pendingMu.Unlock()
		if change.Events > 0 {
			m.dispatch(ctx, change)
		}
	})
	m.pendingMu.Unlock()
}

func (m *Monitor) dispatch(ctx context.Context, change Change) {
	if ctx.Err() != nil {
		return
	}
	m.logger.Info("sound devices changed",
		logging.String(logging.FieldEventType, "sound_devices_changed"),
		logging.String("device", change.Device),
		logging.String("action", change.Action),
		logging.Int("events", change.Events),
	)
	if m.handler != nil {
		m.handler(ctx, change)
	}
}

// deviceName returns the ALSA node name, e.g. "snd/pcmC0D0c" or "card1".
func deviceName(uevent netlink.UEvent) string {
	if devname := strings.TrimSpace(uevent.Env["DEVNAME"]); devname != "" {
		return devname
	}
	devpath := strings.TrimSpace(uevent.Env["DEVPATH"])
	if devpath == "" {
		return ""
	}
	return path.Base(devpath)
}
