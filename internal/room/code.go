package room

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"bingoduel/backend/internal/apperror"
)

const (
	// CodeLength is the length of generated room codes.
	CodeLength = 6
	// MaxCodeLength caps what a user may type as a code.
	MaxCodeLength = 9
	// MaxNameLength caps display names, in runes.
	MaxNameLength = 20
)

var codeCharset = append(append([]rune{}, lo.UpperCaseLettersCharset...), lo.NumbersCharset...)

// NewCode returns a random upper-case alphanumeric room code.
func NewCode() string {
	return lo.RandomString(CodeLength, codeCharset)
}

// NormalizeCode upper-cases and trims user input and caps it at
// MaxCodeLength runes.
func NormalizeCode(raw string) string {
	return capRunes(strings.ToUpper(strings.TrimSpace(raw)), MaxCodeLength)
}

func capRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CleanName trims a display name and caps it at MaxNameLength runes.
func CleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("name is required: %w", apperror.ErrInvalidInput)
	}
	return capRunes(name, MaxNameLength), nil
}
