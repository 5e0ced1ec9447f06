package validation

import (
	"os"
	"strings"
	"testing"
)

func TestValidateMessageContent(t *testing.T) {
	os.Unsetenv("MAX_MESSAGE_LENGTH")

	tests := []struct {
		name     string
		content  string
		isText   bool
		expected bool
	}{
		{"Valid text", "hello world", true, true},
		{"Empty text", "", true, false},
		{"Whitespace only text", "   \t  ", true, false},
		{"Empty caption on attachment", "", false, true},
		{"Text at limit", strings.Repeat("a", 5000), true, true},
		{"Text over limit", strings.Repeat("a", 5001), true, false},
		{"Attachment caption over limit", strings.Repeat("a", 5001), false, false},
		{"Multibyte text at rune limit", strings.Repeat("é", 5000), true, true},
		{"Multibyte text over rune limit", strings.Repeat("é", 5001), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateMessageContent(tt.content, tt.isText)
			if result != tt.expected {
				t.Errorf("ValidateMessageContent(len=%d, isText=%v) = %v, want %v",
					len(tt.content), tt.isText, result, tt.expected)
			}
		})
	}
}

func TestMaxMessageLength(t *testing.T) {
	tests := []struct {
		name        string
		envValue    string
		expected    int
		shouldUnset bool
	}{
		{"Default limit", "", 5000, true},
		{"Custom limit", "200", 200, false},
		{"Invalid env value", "invalid", 5000, false},
		{"Zero is rejected", "0", 5000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldUnset {
				os.Unsetenv("MAX_MESSAGE_LENGTH")
			} else {
				os.Setenv("MAX_MESSAGE_LENGTH", tt.envValue)
			}
			defer os.Unsetenv("MAX_MESSAGE_LENGTH")

			result := MaxMessageLength()
			if result != tt.expected {
				t.Errorf("MaxMessageLength() = %d, want %d", result, tt.expected)
			}
		})
	}
}

func TestValidateGroupName(t *testing.T) {
	tests := []struct {
		name      string
		groupName string
		expected  bool
	}{
		{"Valid name", "backend crew", true},
		{"Single character", "x", true},
		{"Maximum length", strings.Repeat("a", 100), true},
		{"Too long", strings.Repeat("a", 101), false},
		{"Empty name", "", false},
		{"Whitespace only", "    ", false},
		{"Name with emoji", "devs 🚀", true},
		{"Control character", "bad\x00name", false},
		{"Newline", "line\nbreak", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateGroupName(tt.groupName)
			if result != tt.expected {
				t.Errorf("ValidateGroupName(%q) = %v, want %v", tt.groupName, result, tt.expected)
			}
		})
	}
}

func TestNormalizeGroupName(t *testing.T) {
	tests := []struct {
		name      string
		groupName string
		expected  string
	}{
		{"Name with spaces", "  backend crew  ", "backend crew"},
		{"Name no spaces", "backend crew", "backend crew"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeGroupName(tt.groupName)
			if result != tt.expected {
				t.Errorf("NormalizeGroupName(%q) = %q, want %q", tt.groupName, result, tt.expected)
			}
		})
	}
}

func TestTrimAndLimit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"Normal string", "hello world", 20, "hello world"},
		{"String with spaces", "  hello world  ", 20, "hello world"},
		{"String exceeding limit", "hello world this is too long", 10, "hello worl"},
		{"Empty string", "", 20, ""},
		{"String at limit", "hello", 5, "hello"},
		{"Zero limit disables truncation", "hello world", 0, "hello world"},
		{"Multibyte cut keeps whole runes", "héllo wörld", 6, "héllo "},
		{"Multibyte at rune limit untouched", "héllö", 5, "héllö"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimAndLimit(tt.input, tt.limit)
			if result != tt.expected {
				t.Errorf("TrimAndLimit(%q, %d) = %q, want %q", tt.input, tt.limit, result, tt.expected)
			}
		})
	}
}

func TestPreviewOf(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		max      int
		expected string
	}{
		{"Short content", "see you there", 255, "see you there"},
		{"Truncated content", strings.Repeat("a", 300), 255, strings.Repeat("a", 255)},
		{"Default max on zero", strings.Repeat("b", 300), 0, strings.Repeat("b", 255)},
		{"Trimmed content", "  hi  ", 255, "hi"},
		{"Multibyte cut keeps whole runes", strings.Repeat("汉", 300), 255, strings.Repeat("汉", 255)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PreviewOf(tt.content, tt.max)
			if result != tt.expected {
				t.Errorf("PreviewOf(len=%d, %d) = len %d, want len %d", len(tt.content), tt.max, len(result), len(tt.expected))
			}
		})
	}
}
