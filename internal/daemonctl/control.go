package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"confcap/internal/config"
	"confcap/internal/deps"
	"confcap/internal/ipc"
	"confcap/internal/preflight"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateLaunched       StartState = "launched"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon launch orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached confcap daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureRunning launches the daemon unless it already answers on socketPath.
func EnsureRunning(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	state := StartStateAlreadyRunning
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		state = StartStateLaunched
	}
	defer client.Close()

	result := StartResult{State: state}
	if status, err := client.Status(); err == nil && status != nil {
		result.PID = status.PID
	}
	return result, nil
}

// WaitForShutdown waits until daemon IPC stops answering.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
		} else {
			_ = client.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	pid := 0
	if status != nil {
		pid = status.PID
	}
	return true, pid, nil
}

// ReadPID returns the PID recorded in pidPath, or 0 when absent.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, nil
	}
	return pid, nil
}

// ForceKillProcess sends SIGKILL to daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	ShutdownAcknowledged bool
	ForcedKill           bool
	PID                  int
}

// StopAndTerminate asks the daemon to exit and force-kills the process if it
// is still alive after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	socketPath := cfg.SocketPath()
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil && status != nil {
		pid = status.PID
	}
	resp, err := client.Shutdown()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, ShutdownAcknowledged: resp != nil && resp.Accepted}

	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}
	killedPID, killErr := ForceKillProcess(cfg.PIDPath(), cfg.LockPath(), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Snapshot is the status shown by `confcap status`, with offline fallbacks
// when the daemon is not reachable.
type Snapshot struct {
	Reachable bool
	Status    ipc.StatusResponse
	Summary   DependencySummary
}

// BuildStatusSnapshot collects daemon status, or local dependency and
// preflight results when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	if strings.TrimSpace(socketPath) == "" {
		socketPath = cfg.SocketPath()
	}
	snap := &Snapshot{}
	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snap.Reachable = true
			snap.Status = *resp
		}
	}
	if !snap.Reachable {
		snap.Status.LockPath = cfg.LockPath()
		snap.Status.HostSocket = cfg.Host.SocketPath
		snap.Status.Dependencies = preflight.CheckSystemDeps(ctx, cfg)
		snap.Status.Checks = preflight.RunAll(ctx, cfg)
	}
	snap.Summary = BuildDependencySummary(snap.Status.Dependencies)
	return snap, nil
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(statuses []deps.Status) DependencySummary {
	if len(statuses) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range statuses {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(statuses) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(statuses), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(statuses))
	}

	return DependencySummary{
		Total:           len(statuses),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}

// StatusLine is one labeled row of `confcap status` output.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// BuildSystemLines resolves status lines that combine runtime state and
// preflight checks.
func BuildSystemLines(snap *Snapshot) []StatusLine {
	if snap == nil {
		return nil
	}
	st := snap.Status
	lines := make([]StatusLine, 0, 4+len(st.Checks))
	if !snap.Reachable {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `confcap daemon start`)"})
	} else {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", st.PID)})
		switch {
		case st.Capture.Capturing:
			lines = append(lines, StatusLine{Label: "Capture", Severity: "ok", Detail: "Capturing " + st.Capture.SessionID})
		default:
			lines = append(lines, StatusLine{Label: "Capture", Severity: "info", Detail: "Idle"})
		}
		if st.DeviceMonitor {
			lines = append(lines, StatusLine{Label: "Device Detection", Severity: "ok", Detail: "Netlink monitoring active"})
		} else {
			lines = append(lines, StatusLine{Label: "Device Detection", Severity: "info", Detail: "Inactive"})
		}
	}
	for _, check := range st.Checks {
		severity := "ok"
		if !check.Passed {
			severity = "error"
		}
		lines = append(lines, StatusLine{Label: check.Name, Severity: severity, Detail: check.Detail})
	}
	return lines
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
