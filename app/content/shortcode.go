package content

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
)

const ShortCodeLength = 8

var shortCodeSpan = big.NewInt(90000000)

// NewShortCode returns a random 8 digit code without a leading zero.
func NewShortCode() (string, error) {
	n, err := rand.Int(rand.Reader, shortCodeSpan)
	if err != nil {
		return "", fmt.Errorf("failed to generate short code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+10000000), nil
}

// IsShortCode reports whether code is exactly eight ASCII digits.
func IsShortCode(code string) bool {
	if len(code) != ShortCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// CanonicalURL is the public address of a blog.
func CanonicalURL(siteURL, slug string) string {
	return siteURL + "/news/" + url.PathEscape(slug)
}

// ShortURL is the short link of a blog.
func ShortURL(siteURL, code string) string {
	return siteURL + "/" + code
}
