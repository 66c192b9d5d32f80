package database

import (
	"context"
	"testing"
	"time"
)

func TestRSSRepo_Settings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRSSRepository(db)

	settings, err := repo.GetSettings(ctx)
	if err != nil {
		t.Fatalf("Failed to get settings: %v", err)
	}
	if settings.Active {
		t.Error("Expected RSS to be inactive by default")
	}
	if settings.IntervalMinutes != 30 {
		t.Errorf("Expected default interval 30, got %d", settings.IntervalMinutes)
	}
	if settings.LastCheckAt != nil {
		t.Errorf("Expected no last check, got %v", settings.LastCheckAt)
	}

	settings.Active = true
	settings.IntervalMinutes = 10
	if err := repo.UpdateSettings(ctx, settings); err != nil {
		t.Fatalf("Failed to update settings: %v", err)
	}

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.MarkChecked(ctx, at); err != nil {
		t.Fatalf("Failed to mark checked: %v", err)
	}

	settings, _ = repo.GetSettings(ctx)
	if !settings.Active || settings.IntervalMinutes != 10 {
		t.Errorf("Expected active with interval 10, got %+v", settings)
	}
	if settings.LastCheckAt == nil || !settings.LastCheckAt.Equal(at) {
		t.Errorf("Expected last check %v, got %v", at, settings.LastCheckAt)
	}
	if settings.IsDue(at.Add(9 * time.Minute)) {
		t.Error("Expected not due before interval elapsed")
	}
	if !settings.IsDue(at.Add(10 * time.Minute)) {
		t.Error("Expected due once interval elapsed")
	}
}

func TestRSSRepo_SourcesAndItems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRSSRepository(db)

	src := &RSSSource{
		Name:    "isna",
		URL:     "https://example.com/rss",
		Active:  true,
		Timeout: 10,
		Filters: []RSSFilter{{Field: "title", Excludes: []string{"آگهی"}}},
	}
	if err := repo.CreateSource(ctx, src); err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	got, err := repo.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("Failed to get source: %v", err)
	}
	if len(got.Filters) != 1 || got.Filters[0].Excludes[0] != "آگهی" {
		t.Errorf("Expected filters to round-trip, got %+v", got.Filters)
	}

	upsert := &RSSSource{Name: "isna", URL: "https://example.com/rss2", Active: false, Timeout: 20}
	if err := repo.UpsertSourceByName(ctx, upsert); err != nil {
		t.Fatalf("Failed to upsert source: %v", err)
	}
	if upsert.ID != src.ID {
		t.Errorf("Expected upsert to reuse id %d, got %d", src.ID, upsert.ID)
	}

	active, err := repo.ActiveSources(ctx)
	if err != nil {
		t.Fatalf("Failed to list active sources: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected no active sources after upsert, got %d", len(active))
	}

	item := &RSSItem{SourceID: src.ID, GUID: "g1", ContentHash: "h1", Title: "t", Status: RSSItemPublished}
	if err := repo.RecordItem(ctx, item); err != nil {
		t.Fatalf("Failed to record item: %v", err)
	}

	cases := []struct {
		name     string
		guid     string
		hash     string
		expected bool
	}{
		{"same guid", "g1", "other", true},
		{"same hash", "g2", "h1", true},
		{"new item", "g2", "h2", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exists, err := repo.ItemExists(ctx, src.ID, tc.guid, tc.hash)
			if err != nil {
				t.Fatalf("Failed to check item: %v", err)
			}
			if exists != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, exists)
			}
		})
	}

	items, total, err := repo.ListItems(ctx, src.ID, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list items: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Errorf("Expected 1 item, got total=%d len=%d", total, len(items))
	}

	deleted, err := repo.DeleteItemsOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete items: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted item, got %d", deleted)
	}
}

func TestSettingRepo_Upsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewSettingRepository(db)

	err := repo.Upsert(ctx, []Setting{
		{Key: "site_title", Value: "خبر", IsPublic: true},
		{Key: "smtp_password", Value: "secret"},
	})
	if err != nil {
		t.Fatalf("Failed to upsert settings: %v", err)
	}

	if err := repo.Upsert(ctx, []Setting{{Key: "site_title", Value: "خبر نو", IsPublic: true}}); err != nil {
		t.Fatalf("Failed to update setting: %v", err)
	}

	public, err := repo.Public(ctx)
	if err != nil {
		t.Fatalf("Failed to list public settings: %v", err)
	}
	if len(public) != 1 || public[0].Value != "خبر نو" {
		t.Errorf("Expected one public setting with updated value, got %+v", public)
	}

	all, _ := repo.All(ctx)
	if len(all) != 2 {
		t.Errorf("Expected 2 settings, got %d", len(all))
	}

	missing, err := repo.Get(ctx, "missing")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing setting, got %+v, %v", missing, err)
	}
}
