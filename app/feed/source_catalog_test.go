package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSourceFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestSourceCatalog_Load(t *testing.T) {
	dir := t.TempDir()

	writeSourceFile(t, dir, "isna.yml", `
url: "https://www.isna.ir/rss"
category: "politics"
settings:
  enabled: true
  extract_content: true
filters:
  - field: "title"
    excludes: ["آگهی"]
`)
	writeSourceFile(t, dir, "tasnim.yml", `
url: "https://www.tasnimnews.com/fa/rss/feed"
settings:
  enabled: false
  timeout: 10
`)
	writeSourceFile(t, dir, "notes.txt", "ignored")

	catalog := NewSourceCatalog(dir)
	if err := catalog.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if catalog.Count() != 2 {
		t.Fatalf("Expected 2 sources, got %d", catalog.Count())
	}

	isna, err := catalog.Get("isna")
	if err != nil {
		t.Fatalf("Expected isna source, got error: %v", err)
	}
	if isna.URL != "https://www.isna.ir/rss" {
		t.Errorf("Expected isna URL, got %s", isna.URL)
	}
	if isna.Category != "politics" {
		t.Errorf("Expected category 'politics', got %s", isna.Category)
	}
	if isna.Settings.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got %d", isna.Settings.Timeout)
	}
	if !isna.Settings.ExtractContent {
		t.Error("Expected extract_content to be true")
	}
	if len(isna.Filters) != 1 || isna.Filters[0].Excludes[0] != "آگهی" {
		t.Errorf("Expected one exclude filter, got %+v", isna.Filters)
	}

	all := catalog.All()
	if all[0].Name != "isna" || all[1].Name != "tasnim" {
		t.Errorf("Expected sources sorted by name, got %s, %s", all[0].Name, all[1].Name)
	}
	if all[1].Settings.Enabled {
		t.Error("Expected tasnim to be disabled")
	}
	if all[1].Settings.Timeout != 10 {
		t.Errorf("Expected timeout 10, got %d", all[1].Settings.Timeout)
	}

	if _, err := catalog.Get("missing"); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestSourceCatalog_MissingDirectory(t *testing.T) {
	catalog := NewSourceCatalog(filepath.Join(t.TempDir(), "absent"))

	if err := catalog.Run(); err != nil {
		t.Fatalf("Expected no error for missing directory, got: %v", err)
	}
	if catalog.Count() != 0 {
		t.Errorf("Expected empty catalog, got %d", catalog.Count())
	}
}

func TestSourceCatalog_InvalidDefinitions(t *testing.T) {
	tests := map[string]string{
		"missing url": `settings: {enabled: true}`,
		"bad filter": `
url: "https://example.com/rss"
filters:
  - field: "body"
    includes: ["x"]
`,
		"negative timeout": `
url: "https://example.com/rss"
settings: {timeout: -1}
`,
		"bad yaml": "url: [",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeSourceFile(t, dir, "source.yml", body)

			if err := NewSourceCatalog(dir).Run(); err == nil {
				t.Error("Expected error for invalid definition")
			}
		})
	}
}

func TestSourceCatalog_ReloadReplacesCache(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "a.yml", `url: "https://a.example/rss"`)

	catalog := NewSourceCatalog(dir)
	if err := catalog.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "a.yml")); err != nil {
		t.Fatal(err)
	}
	writeSourceFile(t, dir, "b.yml", `url: "https://b.example/rss"`)

	if err := catalog.Run(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := catalog.Get("a"); err == nil {
		t.Error("Expected removed source to be dropped")
	}
	if _, err := catalog.Get("b"); err != nil {
		t.Errorf("Expected new source, got error: %v", err)
	}
}
