package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/rbright/rehearse/internal/media"
)

var validate = validator.New()

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validate.Struct(cfg); err != nil {
		return nil, describeValidationError(err)
	}

	if cfg.Handoff.Backend == "redis" && cfg.Handoff.RedisAddr == "" {
		return nil, fmt.Errorf("handoff.redis_addr must not be empty when handoff.backend=redis")
	}
	if cfg.Cue.Enable && strings.TrimSpace(cfg.Cue.DesktopAppName) == "" {
		return nil, fmt.Errorf("cue.desktop_app_name must not be empty when cue.enable=true")
	}
	if len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}

	for _, format := range cfg.Media.Formats {
		if !slices.Contains(media.DefaultPreferences, format) {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("media.formats entry %q is not a known recording format", format)})
		}
	}
	if cfg.Media.Video {
		warnings = append(warnings, Warning{Message: "media.video=true requires a camera; the Pulse runtime captures audio only"})
	}

	return warnings, nil
}

func describeValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	key := configKey(fe.Namespace())
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s must not be empty", key)
	case "url":
		return fmt.Errorf("%s must be an absolute URL", key)
	case "startswith":
		return fmt.Errorf("%s must start with '%s'", key, param)
	case "hostname_port":
		return fmt.Errorf("%s must be host:port", key)
	case "gt":
		return fmt.Errorf("%s must be > %s", key, param)
	case "gte":
		return fmt.Errorf("%s must be >= %s", key, param)
	case "lte":
		return fmt.Errorf("%s must be <= %s", key, param)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", key, strings.Join(strings.Fields(param), ", "))
	default:
		return fmt.Errorf("%s failed %q validation", key, fe.Tag())
	}
}

// configKey maps a validator namespace like Config.Backend.BaseURL to the
// JSONC key backend.base_url.
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = snakeCase(part)
	}
	return strings.Join(parts, ".")
}

func snakeCase(name string) string {
	runes := []rune(name)
	var out strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower) {
				out.WriteByte('_')
			}
		}
		out.WriteRune(unicode.ToLower(r))
	}
	return out.String()
}
