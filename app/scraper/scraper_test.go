package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lysyi3m/khabar/app/database"
)

const pricePage = `<html><body>
<table id="prices">
  <tr class="row"><td class="name">پژو ۲۰۶</td><td class="model">تیپ ۲</td><td class="price">۱٬۲۵۰٬۰۰۰٬۰۰۰ تومان</td></tr>
  <tr class="row"><td class="name">  سمند   LX </td><td class="model">۱۴۰۳</td><td class="price">980,000,000</td></tr>
  <tr class="row"><td class="name">كوييك</td><td class="price">تماس بگیرید</td></tr>
  <tr class="row"><td class="name"></td><td class="price">100</td></tr>
</table>
</body></html>`

func testSource(url string) database.CarSource {
	return database.CarSource{
		ID:            1,
		Name:          "test",
		URL:           url,
		RowSelector:   "#prices tr.row",
		NameSelector:  ".name",
		ModelSelector: ".model",
		PriceSelector: ".price",
	}
}

func newPageServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Khabar/test" {
			t.Errorf("Expected user agent Khabar/test, got %s", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCarPriceScraper_Run(t *testing.T) {
	server := newPageServer(t, http.StatusOK, pricePage)
	scraper := NewCarPriceScraper(nil, "Khabar/test")

	prices, err := scraper.Run(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(prices) != 2 {
		t.Fatalf("Expected 2 rows, got %d: %+v", len(prices), prices)
	}

	if prices[0].Name != "پژو 206" {
		t.Errorf("Expected normalized name 'پژو 206', got %q", prices[0].Name)
	}
	if prices[0].Model != "تیپ 2" {
		t.Errorf("Expected model 'تیپ 2', got %q", prices[0].Model)
	}
	if prices[0].Price != 1250000000 {
		t.Errorf("Expected price 1250000000, got %d", prices[0].Price)
	}
	if prices[1].Name != "سمند LX" {
		t.Errorf("Expected collapsed whitespace, got %q", prices[1].Name)
	}
	if prices[1].Price != 980000000 {
		t.Errorf("Expected price 980000000, got %d", prices[1].Price)
	}
}

func TestCarPriceScraper_NoRows(t *testing.T) {
	server := newPageServer(t, http.StatusOK, "<html><body><p>empty</p></body></html>")

	_, err := NewCarPriceScraper(nil, "Khabar/test").Run(context.Background(), testSource(server.URL))
	if !errors.Is(err, ErrNoRows) {
		t.Errorf("Expected ErrNoRows, got %v", err)
	}
}

func TestCarPriceScraper_HTTPError(t *testing.T) {
	server := newPageServer(t, http.StatusBadGateway, "bad gateway")

	_, err := NewCarPriceScraper(nil, "Khabar/test").Run(context.Background(), testSource(server.URL))
	if err == nil || errors.Is(err, ErrNoRows) {
		t.Errorf("Expected HTTP error, got %v", err)
	}
}

func TestCarPriceScraper_IncompleteSelectors(t *testing.T) {
	source := testSource("http://127.0.0.1:0")
	source.PriceSelector = ""

	if _, err := NewCarPriceScraper(nil, "Khabar/test").Run(context.Background(), source); err == nil {
		t.Error("Expected error for missing price selector")
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input string
		want  int64
		ok    bool
	}{
		{"۱٬۲۵۰٬۰۰۰", 1250000, true},
		{"1,250,000 تومان", 1250000, true},
		{"١٢٣", 123, true},
		{"قیمت: ۵۰۰ ۰۰۰ ریال", 500000, true},
		{"تماس بگیرید", 0, false},
		{"", 0, false},
		{"0", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePrice(%q): expected (%d, %v), got (%d, %v)", tt.input, tt.want, tt.ok, got, ok)
		}
	}
}
