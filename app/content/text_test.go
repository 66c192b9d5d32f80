package content

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"latin", "Hello, World!", "hello-world"},
		{"persian words", "قیمت خودرو امروز", "قیمت-خودرو-امروز"},
		{"arabic yeh and kaf", "كتاب علي", "کتاب-علی"},
		{"zwnj becomes dash", "می‌رود", "می-رود"},
		{"persian digits", "خبر ۱۴۰۳", "خبر-1403"},
		{"collapses separators", "  a -- b__c  ", "a-b-c"},
		{"drops harakat", "کِتاب", "کتاب"},
		{"only punctuation", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSlugify_MaxLength(t *testing.T) {
	slug := Slugify(strings.Repeat("خبر ", 60))

	if n := utf8.RuneCountInString(slug); n > maxSlugLength {
		t.Errorf("Expected at most %d runes, got %d", maxSlugLength, n)
	}
	if strings.HasSuffix(slug, "-") {
		t.Errorf("Expected no trailing dash, got %q", slug)
	}
}

func TestNormalizeDigits(t *testing.T) {
	if got := NormalizeDigits("۰۹۱۲-٣٤٥"); got != "0912-345" {
		t.Errorf("Expected 0912-345, got %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("short text", 50); got != "short text" {
		t.Errorf("Expected unchanged text, got %q", got)
	}

	got := Excerpt("one two three four", 10)
	if got != "one two…" {
		t.Errorf("Expected 'one two…', got %q", got)
	}
}

func TestSanitizeHTML(t *testing.T) {
	got := SanitizeHTML(`<p onclick="x()">متن</p><script>alert(1)</script><a href="javascript:evil()">l</a>`)

	if strings.Contains(got, "script") || strings.Contains(got, "onclick") || strings.Contains(got, "javascript") {
		t.Errorf("Expected unsafe markup to be removed, got %q", got)
	}
	if !strings.Contains(got, "<p>متن</p>") {
		t.Errorf("Expected paragraph to survive, got %q", got)
	}
}

func TestPlainText(t *testing.T) {
	if got := PlainText("<p>a &amp; <b>b</b></p>"); got != "a & b" {
		t.Errorf("Expected 'a & b', got %q", got)
	}
}

func TestShortCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := NewShortCode()
		if err != nil {
			t.Fatalf("Failed to generate code: %v", err)
		}
		if !IsShortCode(code) {
			t.Fatalf("Expected generated code %q to be valid", code)
		}
	}

	invalid := []string{"", "1234567", "123456789", "1234567a", "۱۲۳۴۵۶۷۸", "../12345"}
	for _, code := range invalid {
		if IsShortCode(code) {
			t.Errorf("Expected %q to be rejected", code)
		}
	}
}

func TestCanonicalURL(t *testing.T) {
	got := CanonicalURL("https://example.com", "a b")
	if got != "https://example.com/news/a%20b" {
		t.Errorf("Expected escaped canonical URL, got %q", got)
	}
}
