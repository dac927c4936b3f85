package config

import "strings"

const byteOrderMark = "\uFEFF"

// Parse applies JSONC content on top of base and validates the result.
// Blank content and a leading byte order mark are tolerated.
func Parse(content string, base Config) (Config, []Warning, error) {
	content = strings.TrimPrefix(content, byteOrderMark)
	if strings.TrimSpace(content) != "" {
		return parseJSONC(content, base)
	}

	warnings, err := Validate(base)
	if err != nil {
		return Config{}, nil, err
	}
	return base, warnings, nil
}
