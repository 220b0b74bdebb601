// Package i18n loads the localized message catalogs used for validation
// messages, prompt labels and the per-flow rejection banners. Catalog files
// live under locales/<tag>.yaml and are embedded at build time; callers may
// load their own catalogs from any fs.FS.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the storefront's source locale and the fallback for lookups.
const BaseLocale = "id-ID"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds message maps keyed by locale tag.
type Catalog struct {
	locales map[string]map[string]string
	tags    []language.Tag
	names   []string
	matcher language.Matcher
}

// Default returns the embedded catalog. It panics if the embedded files are
// malformed, which only happens on a broken build.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = LoadFS(embeddedLocales)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

// LoadFS parses every locales/*.yaml file found in fsys.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("i18n: glob catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("i18n: no catalog files found")
	}
	sort.Strings(paths)

	c := &Catalog{locales: make(map[string]map[string]string, len(paths))}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", p, err)
		}
		if err := c.add(p, data); err != nil {
			return nil, err
		}
	}
	if _, ok := c.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("i18n: base locale %s is not defined", BaseLocale)
	}

	// Base locale first so the matcher falls back to it.
	c.names = append(c.names, BaseLocale)
	for name := range c.locales {
		if name != BaseLocale {
			c.names = append(c.names, name)
		}
	}
	sort.Strings(c.names[1:])
	for _, name := range c.names {
		c.tags = append(c.tags, language.MustParse(name))
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

func (c *Catalog) add(p string, data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("i18n: parse %s: %w", p, err)
	}
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("i18n: %s: locale is required", p)
	}
	if want := strings.TrimSuffix(path.Base(p), path.Ext(p)); want != locale {
		return fmt.Errorf("i18n: %s: locale %q must match file name %q", p, locale, want)
	}
	if _, err := language.Parse(locale); err != nil {
		return fmt.Errorf("i18n: %s: invalid locale %q: %w", p, locale, err)
	}
	if _, exists := c.locales[locale]; exists {
		return fmt.Errorf("i18n: %s: locale %q already loaded", p, locale)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("i18n: %s: messages map is required", p)
	}

	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("i18n: %s: message key cannot be blank", p)
		}
		messages[trimmed] = value
	}
	c.locales[locale] = messages
	return nil
}

// Locales returns the loaded locale tags, base locale first.
func (c *Catalog) Locales() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

// Resolve maps an arbitrary language preference ("en", "id", "en-GB") onto
// the closest loaded locale.
func (c *Catalog) Resolve(locale string) string {
	if c == nil || len(c.tags) == 0 {
		return BaseLocale
	}
	trimmed := strings.TrimSpace(locale)
	if _, ok := c.locales[trimmed]; ok {
		return trimmed
	}
	if trimmed == "" {
		return BaseLocale
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return BaseLocale
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return BaseLocale
	}
	return c.names[idx]
}

// Lookup returns the message for key in locale, falling back to the base
// locale. The second result reports whether the key exists at all.
func (c *Catalog) Lookup(locale, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	if messages, ok := c.locales[c.Resolve(locale)]; ok {
		if msg, ok := messages[key]; ok {
			return msg, true
		}
	}
	msg, ok := c.locales[BaseLocale][key]
	return msg, ok
}

// Message returns the message for key or the key itself when no catalog
// defines it.
func (c *Catalog) Message(locale, key string) string {
	if msg, ok := c.Lookup(locale, key); ok {
		return msg
	}
	return key
}

// Messagef formats the message for key with args.
func (c *Catalog) Messagef(locale, key string, args ...any) string {
	return fmt.Sprintf(c.Message(locale, key), args...)
}
