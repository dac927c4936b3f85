// Package config resolves, parses, validates, and defaults rehearse configuration.
package config

// Config is the fully materialized runtime configuration used by rehearse.
type Config struct {
	Backend       BackendConfig
	Questions     QuestionsConfig
	Media         MediaConfig
	Transcription TranscriptionConfig
	Transcript    TranscriptConfig
	Handoff       HandoffConfig
	Cue           CueConfig
	Clipboard     CommandConfig
	Log           LogConfig
	Debug         DebugConfig
}

// BackendConfig locates the interview service.
type BackendConfig struct {
	BaseURL          string `validate:"required,url"`
	HealthPath       string `validate:"required,startswith=/"`
	GRPCHealth       string `validate:"omitempty,hostname_port"`
	RequestTimeoutMS int    `validate:"gt=0"`
}

// QuestionsConfig bounds question generation.
type QuestionsConfig struct {
	TimeoutMS int `validate:"gt=0"`
}

// MediaConfig controls device selection and capture encoding.
type MediaConfig struct {
	Input       string
	Fallback    string
	Video       bool
	Formats     []string `validate:"dive,required"`
	TimesliceMS int      `validate:"gte=100"`
}

// TranscriptionConfig controls answer upload retries.
type TranscriptionConfig struct {
	MaxAttempts    int `validate:"gte=1,lte=5"`
	RetryBackoffMS int `validate:"gte=0"`
}

// TranscriptConfig controls transcript normalization.
type TranscriptConfig struct {
	CapitalizeSentences bool
}

// HandoffConfig selects where uploaded CV text waits for the interview.
type HandoffConfig struct {
	Backend    string `validate:"oneof=file redis"`
	Path       string
	RedisAddr  string `validate:"required_if=Backend redis,omitempty,hostname_port"`
	RedisDB    int    `validate:"gte=0"`
	Key        string `validate:"required"`
	TTLSeconds int    `validate:"gte=0"`
}

// CueConfig controls desktop notifications and audio cues.
type CueConfig struct {
	Enable            bool
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundErrorFile    string
	ErrorTimeoutMS    int `validate:"gte=0"`
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	ClipDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
