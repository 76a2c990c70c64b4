package common

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

// CleanPath validates a caller-supplied store path. An empty path means
// PrimaryPath. Absolute paths, parent references and control characters are
// rejected with ErrInvalidPath.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return PrimaryPath, nil
	}

	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	for _, r := range p {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}

	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return cleaned, nil
}

// SuggestionPath is the alternate snapshot path used for a user's
// non-destructive copy.
func SuggestionPath(user string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(user)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == '.', r == ' ', r == '@':
			b.WriteRune('_')
		}
	}

	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "anonymous"
	}
	return SuggestionsDir + "/" + name + ".json"
}
