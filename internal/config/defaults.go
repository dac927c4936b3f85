package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Backend: BackendConfig{
			BaseURL:          "http://127.0.0.1:8000",
			HealthPath:       "/docs",
			RequestTimeoutMS: 120000,
		},
		Questions: QuestionsConfig{TimeoutMS: 60000},
		Media: MediaConfig{
			Input:       "default",
			Fallback:    "default",
			TimesliceMS: 1000,
		},
		Transcription: TranscriptionConfig{
			MaxAttempts:    1,
			RetryBackoffMS: 500,
		},
		Transcript: TranscriptConfig{CapitalizeSentences: true},
		Handoff: HandoffConfig{
			Backend:    "file",
			Key:        "rehearse:cv_extracted_text",
			TTLSeconds: 86400,
		},
		Cue: CueConfig{
			Enable:         true,
			DesktopAppName: "rehearse",
			SoundEnable:    true,
			ErrorTimeoutMS: 4000,
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustSplitCommand(clipboard)},
		Log:       LogConfig{Level: "info"},
		Debug:     DebugConfig{},
	}
}
