package cue

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyObject = "/org/freedesktop/Notifications"
)

// desktopNotify sends a freedesktop notification over DBus via busctl and
// returns the server-assigned ID, reused as replaces_id on the next call.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary, body string, timeoutMS int) (uint32, error) {
	out, err := busctl(ctx, "Notify", "susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"audio-input-microphone",
		summary,
		body,
		"0", // actions
		"0", // hints
		strconv.Itoa(timeoutMS),
	)
	if err != nil {
		return 0, fmt.Errorf("desktop notify failed: %w", err)
	}

	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}

	value, parseErr := strconv.ParseUint(fields[1], 10, 32)
	if parseErr != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], parseErr)
	}
	return uint32(value), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	if _, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", err)
	}
	return nil
}

func busctl(ctx context.Context, method, signature string, args ...string) (string, error) {
	argv := append([]string{"--user", "call", notifyDest, notifyObject, notifyDest, method, signature}, args...)
	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}
