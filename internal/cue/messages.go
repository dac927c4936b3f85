package cue

import (
	"fmt"
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	recording  string
	processing string
	ready      string
	errorText  string
}

func messagesFromEnv() messages {
	return localizedMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func localizedMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			recording:  "Recording answer to question %d…",
			processing: "Transcribing answer to question %d…",
			ready:      "Answer to question %d recorded successfully",
			errorText:  "Recording failed",
		}
	}
}

// question renders a per-question message. Indices are zero-based
// internally and shown one-based.
func question(format string, index int) string {
	return fmt.Sprintf(format, index+1)
}
