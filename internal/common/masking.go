package common

import (
	"fmt"
	"regexp"
	"strings"
)

// MaskedValue replaces any value recognised as sensitive.
const MaskedValue = "***MASKED***"

// SensitivePattern represents a pattern to detect and mask sensitive information
type SensitivePattern struct {
	Name        string         // Pattern name (e.g., "password", "form_digest")
	Regex       *regexp.Regexp // Regular expression to match sensitive data
	Replacement string         // Replacement string
	Keys        []string       // Attribute keys masked wholesale (case-insensitive)
}

// DefaultSensitivePatterns covers the secrets a run handles: API credentials,
// database connection strings and the SharePoint form digest.
var DefaultSensitivePatterns = []SensitivePattern{
	{
		Name:        "password",
		Regex:       regexp.MustCompile(`(?i)("?(?:password|passwd|pwd)"?\s*[:=]\s*"?)([^"',;}\]\s]+)`),
		Replacement: "${1}" + MaskedValue,
		Keys:        []string{"password", "passwd", "pwd", "api_password", "go_api_password"},
	},
	{
		Name:        "connection_string",
		Regex:       regexp.MustCompile(`(?i)((?:sqlserver|postgres|postgresql)://[^:/@\s]+:)([^@\s]+)(@)`),
		Replacement: "${1}" + MaskedValue + "${3}",
		Keys:        []string{"connection_string", "sql_conn_string", "dbconnectionstring", "dsn"},
	},
	{
		Name:        "form_digest",
		Regex:       regexp.MustCompile(`(?i)("?(?:formDigestValue|x-requestdigest)"?\s*[:=]\s*"?)([^"',}\]\s]+)`),
		Replacement: "${1}" + MaskedValue,
		Keys:        []string{"form_digest", "x-requestdigest", "digest"},
	},
	{
		Name:        "token",
		Regex:       regexp.MustCompile(`(?i)("?(?:access[_-]?token|client[_-]?secret)"?\s*[:=]\s*"?)([^"',}\]\s]+)`),
		Replacement: "${1}" + MaskedValue,
		Keys:        []string{"token", "access_token", "client_secret", "authorization"},
	},
	{
		Name:        "authorization_header",
		Regex:       regexp.MustCompile(`(?i)\b(Bearer|Basic|NTLM|Negotiate)\s+[A-Za-z0-9\-._~+/]+=*`),
		Replacement: "$1 " + MaskedValue,
	},
}

// Masker handles masking of sensitive information in logs
type Masker struct {
	patterns []SensitivePattern
	enabled  bool
}

// NewMasker creates a new masker with default patterns
func NewMasker() *Masker {
	return &Masker{
		patterns: append([]SensitivePattern(nil), DefaultSensitivePatterns...),
		enabled:  true,
	}
}

// SetEnabled enables or disables masking
func (m *Masker) SetEnabled(enabled bool) {
	m.enabled = enabled
}

// IsEnabled returns whether masking is enabled
func (m *Masker) IsEnabled() bool {
	return m.enabled
}

// AddPattern adds a new sensitive pattern. When Regex is nil one is derived from Keys.
func (m *Masker) AddPattern(pattern SensitivePattern) {
	if pattern.Regex == nil && len(pattern.Keys) > 0 {
		quoted := make([]string, len(pattern.Keys))
		for i, k := range pattern.Keys {
			quoted[i] = regexp.QuoteMeta(k)
		}
		pattern.Regex = regexp.MustCompile(fmt.Sprintf(`(?i)("?(?:%s)"?\s*[:=]\s*"?)([^"',;}\]\s]+)`, strings.Join(quoted, "|")))
		if pattern.Replacement == "" {
			pattern.Replacement = "${1}" + MaskedValue
		}
	}
	m.patterns = append(m.patterns, pattern)
}

// MaskString masks sensitive information in a string
func (m *Masker) MaskString(input string) string {
	if !m.enabled || input == "" {
		return input
	}
	result := input
	for _, pattern := range m.patterns {
		if pattern.Regex == nil {
			continue
		}
		result = pattern.Regex.ReplaceAllString(result, pattern.Replacement)
	}
	return result
}

// MaskValue masks value wholesale when key is sensitive, otherwise applies the regex patterns.
func (m *Masker) MaskValue(key string, value interface{}) interface{} {
	if !m.enabled {
		return value
	}
	lowerKey := strings.ToLower(key)
	for _, pattern := range m.patterns {
		for _, sensitiveKey := range pattern.Keys {
			if lowerKey == strings.ToLower(sensitiveKey) {
				return MaskedValue
			}
		}
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	return m.MaskString(s)
}

var globalMasker = NewMasker()

// GetGlobalMasker returns the global masker instance
func GetGlobalMasker() *Masker {
	return globalMasker
}

// MaskSensitiveData masks sensitive data using the global masker
func MaskSensitiveData(input string) string {
	return globalMasker.MaskString(input)
}

// EnableMasking enables/disables global masking
func EnableMasking(enabled bool) {
	globalMasker.SetEnabled(enabled)
}
