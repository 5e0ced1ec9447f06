package validation

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var groupNameRe = regexp.MustCompile(`^[^\x00-\x1f]{1,100}$`)

func MaxMessageLength() int {
	maxStr := os.Getenv("MAX_MESSAGE_LENGTH")
	if maxStr == "" {
		return 5000
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 5000
	}
	return max
}

// ValidateMessageContent checks the 1..MaxMessageLength bound for text
// messages. Attachment messages may carry empty content (caption-less).
func ValidateMessageContent(content string, isText bool) bool {
	content = strings.TrimSpace(content)
	if isText && content == "" {
		return false
	}
	return utf8.RuneCountInString(content) <= MaxMessageLength()
}

func NormalizeGroupName(name string) string {
	return strings.TrimSpace(name)
}

func ValidateGroupName(name string) bool {
	return groupNameRe.MatchString(NormalizeGroupName(name))
}

// TrimAndLimit counts runes, not bytes, so a cut never splits a
// multi-byte character.
func TrimAndLimit(s string, max int) string {
	s = strings.TrimSpace(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

// PreviewOf truncates message content for the denormalized conversation
// preview column.
func PreviewOf(content string, max int) string {
	content = strings.TrimSpace(content)
	if max <= 0 {
		max = 255
	}
	if utf8.RuneCountInString(content) <= max {
		return content
	}
	return string([]rune(content)[:max])
}
