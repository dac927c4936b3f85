package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// splitCommand splits a command line into argv with shell-style quoting.
// $VAR and ${VAR} expand outside single quotes and a leading ~ expands to
// the home directory. No other shell syntax is interpreted.
func splitCommand(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var (
		argv    []string
		current strings.Builder
		quote   rune
		escape  bool
	)

	flush := func() {
		if current.Len() == 0 {
			return
		}
		argv = append(argv, current.String())
		current.Reset()
	}

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escape:
			current.WriteRune(r)
			escape = false
		case r == '\\' && quote != '\'':
			escape = true
		case r == '$' && quote != '\'':
			name, next := envName(runes, i+1)
			if name == "" {
				current.WriteRune(r)
				continue
			}
			current.WriteString(os.Getenv(name))
			i = next - 1
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
		case r == '~' && current.Len() == 0 && (i+1 == len(runes) || runes[i+1] == '/' || unicode.IsSpace(runes[i+1])):
			current.WriteString(homeDir())
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}

	if escape {
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}

	flush()
	return argv, nil
}

// envName reads a variable name starting at runes[start] in either $NAME
// or ${NAME} form. It returns the index just past the reference.
func envName(runes []rune, start int) (string, int) {
	if start < len(runes) && runes[start] == '{' {
		for j := start + 1; j < len(runes); j++ {
			if runes[j] == '}' {
				return string(runes[start+1 : j]), j + 1
			}
		}
		return "", start
	}

	end := start
	for end < len(runes) && (runes[end] == '_' || unicode.IsLetter(runes[end]) || unicode.IsDigit(runes[end])) {
		end++
	}
	return string(runes[start:end]), end
}

func mustSplitCommand(input string) []string {
	argv, err := splitCommand(input)
	if err != nil {
		panic(err)
	}
	return argv
}

// expandPath expands a leading ~ and environment references in a
// configured file path.
func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		path = filepath.Join(homeDir(), strings.TrimPrefix(path, "~"))
	}
	return os.ExpandEnv(path)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "~"
	}
	return home
}
