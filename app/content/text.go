package content

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength = 100
	zwnj          = '\u200c'
)

func mapDigit(r rune) rune {
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	}
	return r
}

func mapPersian(r rune) rune {
	switch r {
	case 'ي', 'ى':
		return 'ی'
	case 'ك':
		return 'ک'
	}
	return mapDigit(r)
}

// NormalizeDigits converts Persian and Arabic-Indic digits to ASCII.
func NormalizeDigits(s string) string {
	out, _, err := transform.String(runes.Map(mapDigit), s)
	if err != nil {
		return s
	}
	return out
}

// NormalizePersian applies NFC, replaces Arabic yeh and kaf with their
// Persian forms and converts digits to ASCII.
func NormalizePersian(s string) string {
	out, _, err := transform.String(transform.Chain(norm.NFC, runes.Map(mapPersian)), s)
	if err != nil {
		return s
	}
	return out
}

// Slugify builds a URL slug from a Persian or Latin title. Letters and digits
// are kept, everything else collapses into single dashes.
func Slugify(title string) string {
	var b strings.Builder
	dash := true

	for _, r := range strings.ToLower(NormalizePersian(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case unicode.Is(unicode.Mn, r):
			// harakat and other combining marks
		case r == zwnj || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if utf8.RuneCountInString(slug) > maxSlugLength {
		slug = strings.TrimRight(string([]rune(slug)[:maxSlugLength]), "-")
	}

	return slug
}

// Excerpt returns the first n runes of s on a word boundary.
func Excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	cut := string([]rune(s)[:n])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
