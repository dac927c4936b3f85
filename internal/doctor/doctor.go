// Package doctor runs readiness diagnostics for config, tools, audio, the
// interview backend, and the CV handoff store.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/backend"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/handoff"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/rbright/rehearse/internal/version"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{checkConfig(cfg)}

	checks = append(checks, checkControlSocket(ctx))

	checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))

	if cfg.Config.Cue.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
		if cfg.Config.Cue.SoundEnable && customSounds(cfg.Config.Cue) {
			checks = append(checks, checkBinary("pw-play", "custom cue sounds"))
		}
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkBackendReady(ctx, cfg.Config))
	if strings.TrimSpace(cfg.Config.Backend.GRPCHealth) != "" {
		checks = append(checks, checkGRPCHealth(ctx, cfg.Config.Backend.GRPCHealth))
	}

	if cfg.Config.Handoff.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Config.Handoff.RedisAddr,
			DB:   cfg.Config.Handoff.RedisDB,
		})
		defer client.Close()
		checks = append(checks, checkRedisHandoff(ctx, client, cfg.Config.Handoff))
	} else {
		checks = append(checks, checkFileHandoff(cfg.Config.Handoff))
	}

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	msg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		msg = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	if len(cfg.Overrides) > 0 {
		msg += " (overridden by " + strings.Join(cfg.Overrides, ", ") + ")"
	}
	return Check{Name: "config", Pass: true, Message: msg}
}

func customSounds(cfg config.CueConfig) bool {
	for _, file := range []string{cfg.SoundStartFile, cfg.SoundStopFile, cfg.SoundCompleteFile, cfg.SoundErrorFile} {
		if strings.TrimSpace(file) != "" {
			return true
		}
	}
	return false
}

// checkControlSocket reports where status/toggle commands will connect
// and whether an interview currently owns that socket.
func checkControlSocket(ctx context.Context) Check {
	path, err := ipc.SocketPath()
	if err != nil {
		return Check{Name: "control_socket", Pass: false, Message: err.Error() + "; status/toggle commands cannot reach the interview"}
	}

	alive, err := ipc.Client{Path: path, Timeout: 300 * time.Millisecond}.Probe(ctx)
	switch {
	case err != nil:
		return Check{Name: "control_socket", Pass: false, Message: fmt.Sprintf("%s is unresponsive: %v", path, err)}
	case alive:
		return Check{Name: "control_socket", Pass: true, Message: path + " (interview running)"}
	default:
		return Check{Name: "control_socket", Pass: true, Message: path + " (no interview running)"}
	}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Media.Input, cfg.Media.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkBackendReady probes the configured backend health path.
func checkBackendReady(ctx context.Context, cfg config.Config) Check {
	base := strings.TrimSpace(cfg.Backend.BaseURL)
	if base == "" {
		return Check{Name: "backend.ready", Pass: false, Message: "backend.base_url is empty"}
	}

	client := backend.New(backend.Options{
		BaseURL:   base,
		Timeout:   probeTimeout,
		UserAgent: version.UserAgent(),
	})
	url := strings.TrimRight(base, "/") + cfg.Backend.HealthPath
	if err := client.Health(ctx, cfg.Backend.HealthPath); err != nil {
		return Check{Name: "backend.ready", Pass: false, Message: fmt.Sprintf("%s: %v", url, err)}
	}
	return Check{Name: "backend.ready", Pass: true, Message: fmt.Sprintf("ready at %s", url)}
}

func checkRedisHandoff(ctx context.Context, client redis.Cmdable, cfg config.HandoffConfig) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	slot := handoff.NewRedisSlot(client, cfg.Key, time.Duration(cfg.TTLSeconds)*time.Second)
	if err := slot.Ping(ctx); err != nil {
		return Check{Name: "handoff.redis", Pass: false, Message: fmt.Sprintf("ping %s failed: %v", cfg.RedisAddr, err)}
	}
	return Check{Name: "handoff.redis", Pass: true, Message: fmt.Sprintf("reachable at %s (key %s)", cfg.RedisAddr, cfg.Key)}
}

func checkFileHandoff(cfg config.HandoffConfig) Check {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		resolved, err := handoff.DefaultPath()
		if err != nil {
			return Check{Name: "handoff.file", Pass: false, Message: err.Error()}
		}
		path = resolved
	}

	if _, err := os.Stat(path); err == nil {
		return Check{Name: "handoff.file", Pass: true, Message: fmt.Sprintf("CV text waiting at %s", path)}
	}
	return Check{Name: "handoff.file", Pass: true, Message: fmt.Sprintf("no CV text at %s; run upload first", path)}
}
