package auth

import (
	"regexp"
	"strings"

	"github.com/lysyi3m/khabar/app/content"
)

var mobilePattern = regexp.MustCompile(`^09\d{9}$`)

// NormalizeIdentifier canonicalizes a login identifier: emails are lower-cased,
// everything else is treated as a phone number.
func NormalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(content.NormalizeDigits(identifier))
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier)
	}
	return NormalizePhone(identifier)
}

// NormalizePhone strips separators and rewrites the Iranian country code
// prefixes (+98, 0098, 98) to a leading zero.
func NormalizePhone(phone string) string {
	phone = content.NormalizeDigits(strings.TrimSpace(phone))
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)

	switch {
	case strings.HasPrefix(phone, "+98"):
		phone = "0" + phone[3:]
	case strings.HasPrefix(phone, "0098"):
		phone = "0" + phone[4:]
	case strings.HasPrefix(phone, "98") && len(phone) == 12:
		phone = "0" + phone[2:]
	case strings.HasPrefix(phone, "9") && len(phone) == 10:
		phone = "0" + phone
	}

	return phone
}

func IsMobile(phone string) bool {
	return mobilePattern.MatchString(phone)
}
