package cue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocaleDefaultsToEnglish(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
}

func TestMessagesEnglish(t *testing.T) {
	msg := localizedMessages(localeEnglish)
	require.Equal(t, "Recording answer to question 3…", question(msg.recording, 2))
	require.Equal(t, "Transcribing answer to question 1…", question(msg.processing, 0))
	require.Equal(t, "Answer to question 2 recorded successfully", question(msg.ready, 1))
	require.Equal(t, "Recording failed", msg.errorText)
}
