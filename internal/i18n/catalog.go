package i18n

import (
	"fmt"
	"sync"

	"golang.org/x/text/language"
)

// Catalog holds per-locale message templates. Lookups resolve the requested
// locale against the registered ones with a language matcher, so "pt" finds
// "pt-BR" entries and unknown locales fall back to the default.
type Catalog struct {
	mu       sync.RWMutex
	fallback language.Tag
	tags     []language.Tag
	matcher  language.Matcher
	messages map[language.Tag]map[string]string
}

func NewCatalog(defaultLocale string) *Catalog {
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.English
	}

	c := &Catalog{
		fallback: tag,
		messages: make(map[language.Tag]map[string]string),
	}
	c.ensureLocale(tag)
	return c
}

// Add registers a message template under a locale. Unparseable locales are
// folded into the default locale rather than rejected.
func (c *Catalog) Add(locale, key, template string) {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = c.fallback
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLocale(tag)
	c.messages[tag][key] = template
}

// Lookup resolves key for the given locale and formats it with args.
// A missing key returns the key itself so callers never render an empty
// description.
func (c *Catalog) Lookup(locale, key string, args ...any) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tag := c.match(locale)
	template, ok := c.messages[tag][key]
	if !ok {
		template, ok = c.messages[c.fallback][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}

func (c *Catalog) match(locale string) language.Tag {
	requested, err := language.Parse(locale)
	if err != nil {
		return c.fallback
	}

	_, idx, conf := c.matcher.Match(requested)
	if conf == language.No {
		return c.fallback
	}
	return c.tags[idx]
}

// ensureLocale must be called with the write lock held
func (c *Catalog) ensureLocale(tag language.Tag) {
	if _, ok := c.messages[tag]; ok {
		return
	}
	c.messages[tag] = make(map[string]string)
	c.tags = append(c.tags, tag)
	c.matcher = language.NewMatcher(c.tags)
}
