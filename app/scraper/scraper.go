package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/khabar/app/content"
	"github.com/lysyi3m/khabar/app/database"
)

// ErrNoRows is returned when the page contains no parsable price rows.
var ErrNoRows = errors.New("no price rows found")

// CarPriceScraper reads car price tables using CSS selectors stored per source.
type CarPriceScraper struct {
	client    *http.Client
	userAgent string
}

func NewCarPriceScraper(client *http.Client, userAgent string) *CarPriceScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CarPriceScraper{client: client, userAgent: userAgent}
}

func (s *CarPriceScraper) Run(ctx context.Context, source database.CarSource) ([]database.CarPrice, error) {
	if source.RowSelector == "" || source.NameSelector == "" || source.PriceSelector == "" {
		return nil, fmt.Errorf("source %d has incomplete selectors", source.ID)
	}

	doc, err := s.fetch(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	var prices []database.CarPrice
	skipped := 0

	doc.Find(source.RowSelector).Each(func(_ int, row *goquery.Selection) {
		name := cellText(row, source.NameSelector)
		priceText := cellText(row, source.PriceSelector)
		if name == "" || priceText == "" {
			skipped++
			return
		}

		price, ok := ParsePrice(priceText)
		if !ok {
			skipped++
			return
		}

		var model string
		if source.ModelSelector != "" {
			model = cellText(row, source.ModelSelector)
		}

		prices = append(prices, database.CarPrice{
			Name:      name,
			Model:     model,
			Price:     price,
			PriceText: priceText,
		})
	})

	if len(prices) == 0 {
		return nil, ErrNoRows
	}

	slog.Debug("Car prices scraped", "source", source.Name, "rows", len(prices), "skipped", skipped)

	return prices, nil
}

func (s *CarPriceScraper) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}

func cellText(row *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(content.NormalizePersian(row.Find(selector).First().Text())), " ")
}

// ParsePrice reads a price such as "۱٬۲۵۰٬۰۰۰٬۰۰۰ تومان" as an integer.
// Persian and Arabic digits are accepted and separators are ignored.
func ParsePrice(text string) (int64, bool) {
	var digits strings.Builder
scan:
	for _, r := range content.NormalizeDigits(text) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ',' || r == '٬' || r == '،' || r == '.' || r == ' ':
		default:
			if digits.Len() > 0 {
				break scan
			}
		}
	}

	if digits.Len() == 0 {
		return 0, false
	}

	price, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}
