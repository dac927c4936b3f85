package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Backend       *jsoncBackend       `json:"backend"`
	Questions     *jsoncQuestions     `json:"questions"`
	Media         *jsoncMedia         `json:"media"`
	Transcription *jsoncTranscription `json:"transcription"`
	Transcript    *jsoncTranscript    `json:"transcript"`
	Handoff       *jsoncHandoff       `json:"handoff"`
	Cue           *jsoncCue           `json:"cue"`

	ClipboardCmd *string     `json:"clipboard_cmd"`
	Log          *jsoncLog   `json:"log"`
	Debug        *jsoncDebug `json:"debug"`
}

type jsoncBackend struct {
	BaseURL          *string `json:"base_url"`
	HealthPath       *string `json:"health_path"`
	GRPCHealth       *string `json:"grpc_health"`
	RequestTimeoutMS *int    `json:"request_timeout_ms"`
}

type jsoncQuestions struct {
	TimeoutMS *int `json:"timeout_ms"`
}

type jsoncMedia struct {
	Input       *string          `json:"input"`
	Fallback    *string          `json:"fallback"`
	Video       *bool            `json:"video"`
	Formats     *jsoncStringList `json:"formats"`
	TimesliceMS *int             `json:"timeslice_ms"`
}

type jsoncTranscription struct {
	MaxAttempts    *int `json:"max_attempts"`
	RetryBackoffMS *int `json:"retry_backoff_ms"`
}

type jsoncTranscript struct {
	CapitalizeSentences *bool `json:"capitalize_sentences"`
}

type jsoncHandoff struct {
	Backend    *string `json:"backend"`
	Path       *string `json:"path"`
	RedisAddr  *string `json:"redis_addr"`
	RedisDB    *int    `json:"redis_db"`
	Key        *string `json:"key"`
	TTLSeconds *int    `json:"ttl_seconds"`
}

type jsoncCue struct {
	Enable            *bool   `json:"enable"`
	DesktopAppName    *string `json:"desktop_app_name"`
	SoundEnable       *bool   `json:"sound_enable"`
	SoundStartFile    *string `json:"sound_start_file"`
	SoundStopFile     *string `json:"sound_stop_file"`
	SoundCompleteFile *string `json:"sound_complete_file"`
	SoundErrorFile    *string `json:"sound_error_file"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

type jsoncDebug struct {
	ClipDump *bool `json:"clip_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Backend != nil {
		if payload.Backend.BaseURL != nil {
			cfg.Backend.BaseURL = strings.TrimSpace(*payload.Backend.BaseURL)
		}
		if payload.Backend.HealthPath != nil {
			cfg.Backend.HealthPath = strings.TrimSpace(*payload.Backend.HealthPath)
		}
		if payload.Backend.GRPCHealth != nil {
			cfg.Backend.GRPCHealth = strings.TrimSpace(*payload.Backend.GRPCHealth)
		}
		if payload.Backend.RequestTimeoutMS != nil {
			cfg.Backend.RequestTimeoutMS = *payload.Backend.RequestTimeoutMS
		}
	}

	if payload.Questions != nil && payload.Questions.TimeoutMS != nil {
		cfg.Questions.TimeoutMS = *payload.Questions.TimeoutMS
	}

	if payload.Media != nil {
		if payload.Media.Input != nil {
			cfg.Media.Input = *payload.Media.Input
		}
		if payload.Media.Fallback != nil {
			cfg.Media.Fallback = *payload.Media.Fallback
		}
		if payload.Media.Video != nil {
			cfg.Media.Video = *payload.Media.Video
		}
		if payload.Media.Formats != nil {
			cfg.Media.Formats = append([]string(nil), (*payload.Media.Formats)...)
		}
		if payload.Media.TimesliceMS != nil {
			cfg.Media.TimesliceMS = *payload.Media.TimesliceMS
		}
	}

	if payload.Transcription != nil {
		if payload.Transcription.MaxAttempts != nil {
			cfg.Transcription.MaxAttempts = *payload.Transcription.MaxAttempts
		}
		if payload.Transcription.RetryBackoffMS != nil {
			cfg.Transcription.RetryBackoffMS = *payload.Transcription.RetryBackoffMS
		}
	}

	if payload.Transcript != nil && payload.Transcript.CapitalizeSentences != nil {
		cfg.Transcript.CapitalizeSentences = *payload.Transcript.CapitalizeSentences
	}

	if payload.Handoff != nil {
		if payload.Handoff.Backend != nil {
			cfg.Handoff.Backend = strings.ToLower(strings.TrimSpace(*payload.Handoff.Backend))
		}
		if payload.Handoff.Path != nil {
			cfg.Handoff.Path = expandPath(*payload.Handoff.Path)
		}
		if payload.Handoff.RedisAddr != nil {
			cfg.Handoff.RedisAddr = strings.TrimSpace(*payload.Handoff.RedisAddr)
		}
		if payload.Handoff.RedisDB != nil {
			cfg.Handoff.RedisDB = *payload.Handoff.RedisDB
		}
		if payload.Handoff.Key != nil {
			cfg.Handoff.Key = strings.TrimSpace(*payload.Handoff.Key)
		}
		if payload.Handoff.TTLSeconds != nil {
			cfg.Handoff.TTLSeconds = *payload.Handoff.TTLSeconds
		}
	}

	if payload.Cue != nil {
		if payload.Cue.Enable != nil {
			cfg.Cue.Enable = *payload.Cue.Enable
		}
		if payload.Cue.DesktopAppName != nil {
			cfg.Cue.DesktopAppName = strings.TrimSpace(*payload.Cue.DesktopAppName)
		}
		if payload.Cue.SoundEnable != nil {
			cfg.Cue.SoundEnable = *payload.Cue.SoundEnable
		}
		if payload.Cue.SoundStartFile != nil {
			cfg.Cue.SoundStartFile = expandPath(*payload.Cue.SoundStartFile)
		}
		if payload.Cue.SoundStopFile != nil {
			cfg.Cue.SoundStopFile = expandPath(*payload.Cue.SoundStopFile)
		}
		if payload.Cue.SoundCompleteFile != nil {
			cfg.Cue.SoundCompleteFile = expandPath(*payload.Cue.SoundCompleteFile)
		}
		if payload.Cue.SoundErrorFile != nil {
			cfg.Cue.SoundErrorFile = expandPath(*payload.Cue.SoundErrorFile)
		}
		if payload.Cue.ErrorTimeoutMS != nil {
			cfg.Cue.ErrorTimeoutMS = *payload.Cue.ErrorTimeoutMS
		}
	}

	if payload.ClipboardCmd != nil {
		raw := *payload.ClipboardCmd
		argv, err := splitCommand(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}

	if payload.Debug != nil && payload.Debug.ClipDump != nil {
		cfg.Debug.ClipDump = *payload.Debug.ClipDump
	}

	if cfg.Handoff.Backend == "file" && cfg.Handoff.RedisAddr != "" {
		warnings = append(warnings, Warning{Message: "handoff.redis_addr is ignored when handoff.backend=file"})
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
