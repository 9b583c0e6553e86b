package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const defaultLocale = "en-US"

// Cache maps locale tags to localizers. Entries are built on first request
// and live for the process lifetime; only the first request for a tag takes
// the write lock.
type Cache struct {
	mu         sync.RWMutex
	bundle     *goi18n.Bundle
	localizers map[string]*goi18n.Localizer
}

func NewCache() (*Cache, error) {
	bundle := goi18n.NewBundle(language.AmericanEnglish)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("list locales: %w", err)
	}
	for _, entry := range entries {
		data, err := localeFS.ReadFile("locales/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", entry.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, entry.Name()); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", entry.Name(), err)
		}
	}

	return &Cache{
		bundle:     bundle,
		localizers: make(map[string]*goi18n.Localizer),
	}, nil
}

// Localizer returns the localizer for tag, falling back to the default
// locale for messages the tag's resources do not cover.
func (c *Cache) Localizer(tag string) *goi18n.Localizer {
	if tag == "" {
		tag = defaultLocale
	}

	c.mu.RLock()
	loc, ok := c.localizers[tag]
	c.mu.RUnlock()
	if ok {
		return loc
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if loc, ok := c.localizers[tag]; ok {
		return loc
	}
	loc = goi18n.NewLocalizer(c.bundle, tag, defaultLocale)
	c.localizers[tag] = loc
	return loc
}

// Render localizes messageID for tag with the given template data.
func (c *Cache) Render(tag, messageID string, data map[string]any) (string, error) {
	s, err := c.Localizer(tag).Localize(&goi18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", messageID, err)
	}
	return s, nil
}

// RatingName renders the localized label for a content rating tag.
func (c *Cache) RatingName(tag, rating string) string {
	id := "rating-unknown"
	switch rating {
	case "general":
		id = "rating-general"
	case "mature":
		id = "rating-mature"
	case "adult", "explicit":
		id = "rating-adult"
	}

	s, err := c.Render(tag, id, nil)
	if err != nil {
		return rating
	}
	return s
}
