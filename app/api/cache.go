package api

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lysyi3m/khabar/app/database"
)

const (
	settingsCacheTTL  = time.Minute
	shortLinkCacheTTL = 10 * time.Minute
	shortLinkCacheMax = 4096
)

const publicSettingsKey = "public"

// cache holds read-mostly public data. Writes through the admin API purge
// the affected entries.
type cache struct {
	settings   *expirable.LRU[string, map[string]string]
	shortLinks *expirable.LRU[string, string]
}

func newCache() *cache {
	return &cache{
		settings:   expirable.NewLRU[string, map[string]string](1, nil, settingsCacheTTL),
		shortLinks: expirable.NewLRU[string, string](shortLinkCacheMax, nil, shortLinkCacheTTL),
	}
}

func settingsMap(settings []database.Setting) map[string]string {
	m := make(map[string]string, len(settings))
	for _, s := range settings {
		m[s.Key] = s.Value
	}
	return m
}
