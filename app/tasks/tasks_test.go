package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/lysyi3m/khabar/app/database"
	"github.com/lysyi3m/khabar/app/publish"
	"github.com/lysyi3m/khabar/app/rewrite"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func newStaticServer(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

type mockNotifier struct {
	mu     sync.Mutex
	events []string
	data   []any
}

func (m *mockNotifier) Notify(eventType string, data any) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	m.data = append(m.data, data)
	return 1
}

func (m *mockNotifier) count(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type mockTelegram struct {
	posts []publish.Post
	err   error
}

func (m *mockTelegram) Publish(_ context.Context, post publish.Post) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.posts = append(m.posts, post)
	return int64(100 + len(m.posts)), nil
}

type mockRewriter struct {
	calls int
	err   error
}

func (m *mockRewriter) Rewrite(_ context.Context, article rewrite.Article) (rewrite.Article, error) {
	m.calls++
	if m.err != nil {
		return rewrite.Article{}, m.err
	}
	article.Title = "بازنویسی: " + article.Title
	return article, nil
}

var errBoom = errors.New("boom")

// fakeRSSRepo overrides GetSettings; other methods are not used.
type fakeRSSRepo struct {
	database.RSSRepository
	mu       sync.Mutex
	settings *database.RSSSettings
	err      error
	calls    int
}

func (f *fakeRSSRepo) GetSettings(_ context.Context) (*database.RSSSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.settings, f.err
}
