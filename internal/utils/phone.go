package utils

import (
	"regexp"
	"strings"
)

var nonDialable = regexp.MustCompile(`[^\d+]`)

// NormalizePhone strips spaces, dashes, parentheses and similar formatting. Short
// service numbers such as 112 are left without a leading +.
func NormalizePhone(phone string) string {
	normalized := nonDialable.ReplaceAllString(phone, "")

	if strings.HasPrefix(normalized, "00") {
		normalized = "+" + strings.TrimPrefix(normalized, "00")
	}

	return normalized
}

func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}

	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
