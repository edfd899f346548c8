// Package i18n looks up translated strings by dot path ("email.invitation.subject")
// in the embedded en-US and pt-BR tables.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
)

// Supported locales.
const (
	LocaleEnUS    = "en-US"
	LocalePtBR    = "pt-BR"
	DefaultLocale = LocaleEnUS
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator resolves translation paths for the supported locales.
type Translator struct {
	uni          *ut.UniversalTranslator
	placeholders map[string]int
}

// New loads the embedded locale tables.
func New() (*Translator, error) {
	en := en_US.New()
	uni := ut.New(en, en, pt_BR.New())

	t := &Translator{uni: uni, placeholders: make(map[string]int)}
	for _, locale := range []string{LocaleEnUS, LocalePtBR} {
		if err := t.load(locale); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is New for process start-up; it panics if the embedded tables are
// malformed.
func MustNew() *Translator {
	t, err := New()
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Translator) load(locale string) error {
	raw, err := localeFS.ReadFile("locales/" + locale + ".json")
	if err != nil {
		return fmt.Errorf("i18n: read %s: %w", locale, err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("i18n: parse %s: %w", locale, err)
	}

	trans, ok := t.uni.GetTranslator(utLocale(locale))
	if !ok {
		return fmt.Errorf("i18n: no translator for %s", locale)
	}

	flat := make(map[string]string)
	flatten("", tree, flat)
	for path, text := range flat {
		if err := trans.Add(path, text, false); err != nil {
			return fmt.Errorf("i18n: %s %q: %w", locale, path, err)
		}
		if n := strings.Count(text, "{"); n > t.placeholders[path] {
			t.placeholders[path] = n
		}
	}
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(path, val, out)
		case string:
			out[path] = val
		}
	}
}

// T returns the translation of path in locale with positional params
// substituted for {0}, {1}, .... Unsupported locales use en-US. A missing
// path returns the path itself.
func (t *Translator) T(locale, path string, params ...string) string {
	trans, ok := t.uni.GetTranslator(utLocale(Normalize(locale)))
	if !ok {
		return path
	}
	if need := t.placeholders[path]; len(params) < need {
		padded := make([]string, need)
		copy(padded, params)
		params = padded
	}
	s, err := trans.T(path, params...)
	if err != nil {
		return path
	}
	return s
}

// FormatDate renders tm as a long date in locale, e.g. "March 8, 2026" or
// "8 de março de 2026".
func (t *Translator) FormatDate(locale string, tm time.Time) string {
	trans, ok := t.uni.GetTranslator(utLocale(Normalize(locale)))
	if !ok {
		return tm.Format("2006-01-02")
	}
	return trans.FmtDateLong(tm)
}

// Normalize maps a locale tag to a supported locale ("pt", "pt_br",
// "PT-BR" -> "pt-BR"); anything unsupported maps to DefaultLocale.
func Normalize(locale string) string {
	l := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	switch {
	case l == "pt" || strings.HasPrefix(l, "pt-"):
		return LocalePtBR
	default:
		return DefaultLocale
	}
}

// utLocale converts "pt-BR" to the "pt_BR" naming used by go-playground/locales.
func utLocale(locale string) string {
	return strings.ReplaceAll(locale, "-", "_")
}
