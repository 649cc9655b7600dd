// Package language maps the many spellings of a language found on the upstream
// site and in consumer requests onto one canonical value.
package language

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Language is a canonical language value. It is comparable and never mutated after lookup.
type Language struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Alpha3          string `json:"alpha3,omitempty"`
	HearingImpaired bool   `json:"hearingImpaired"`
	Forced          bool   `json:"forced"`
}

// Unknown is returned for tokens that do not map to any known language.
var Unknown = Language{Code: "und", Name: "Unknown"}

// IsUnknown reports whether l is the Unknown sentinel, ignoring flags.
func (l Language) IsUnknown() bool {
	return l.Code == Unknown.Code
}

// Base returns the language without hearing-impaired/forced flags.
func (l Language) Base() Language {
	l.HearingImpaired = false
	l.Forced = false
	return l
}

func (l Language) String() string {
	switch {
	case l.HearingImpaired:
		return l.Code + ":hi"
	case l.Forced:
		return l.Code + ":forced"
	default:
		return l.Code
	}
}

// Mapper resolves free-form tokens against the static language table.
type Mapper struct {
	index   map[string]int
	entries []entry
}

var defaultMapper = NewMapper()

// NewMapper builds the lookup index. Every code, name, ISO 639-2 code, site code and
// alias is folded the same way tokens are folded at lookup time.
func NewMapper() *Mapper {
	m := &Mapper{
		index:   make(map[string]int),
		entries: table,
	}
	for i, e := range table {
		keys := append([]string{e.code, e.name, e.alpha3, e.site}, e.aliases...)
		for _, k := range keys {
			key := fold(k)
			if key == "" {
				continue
			}
			if prev, ok := m.index[key]; ok && prev != i {
				panic(fmt.Sprintf("language: alias %q maps to both %s and %s", k, table[prev].code, e.code))
			}
			m.index[key] = i
		}
	}
	return m
}

// Default returns the shared mapper.
func Default() *Mapper {
	return defaultMapper
}

// Resolve is shorthand for Default().Resolve(token).
func Resolve(token string) Language {
	return defaultMapper.Resolve(token)
}

// Resolve maps an ISO code, a language name or a site code to its canonical Language.
// A ":hi" or ":forced" suffix sets the matching flag. Unrecognized tokens yield Unknown.
func (m *Mapper) Resolve(token string) Language {
	token, hi, forced := splitFlags(token)
	key := fold(token)
	if key == "" {
		return Unknown
	}

	i, ok := m.index[key]
	if !ok {
		i, ok = m.lookupBCP47(key)
	}
	if !ok {
		return Unknown
	}

	lang := m.entries[i].language()
	lang.HearingImpaired = hi
	lang.Forced = forced && !hi
	return lang
}

// lookupBCP47 handles well-formed tags the table does not list verbatim, e.g. "en-AU" or "fra-CA".
func (m *Mapper) lookupBCP47(key string) (int, bool) {
	tag, err := xlanguage.Parse(key)
	if err != nil {
		return 0, false
	}
	base, conf := tag.Base()
	if conf == xlanguage.No {
		return 0, false
	}
	if region, rconf := tag.Region(); rconf == xlanguage.Exact {
		if i, ok := m.index[fold(base.String()+"-"+region.String())]; ok {
			return i, true
		}
	}
	if i, ok := m.index[fold(base.String())]; ok {
		return i, true
	}
	i, ok := m.index[fold(base.ISO3())]
	return i, ok
}

// Aliases returns every token known to resolve to code, including the code itself.
func (m *Mapper) Aliases(code string) []string {
	for _, e := range m.entries {
		if strings.EqualFold(e.code, code) {
			out := []string{e.code, e.name, e.alpha3}
			if e.site != e.alpha3 {
				out = append(out, e.site)
			}
			return append(out, e.aliases...)
		}
	}
	return nil
}

// SiteCode returns the opensubtitles.org sublanguageid for lang, or "all" when unknown.
func (m *Mapper) SiteCode(lang Language) string {
	for _, e := range m.entries {
		if e.code == lang.Code {
			return e.site
		}
	}
	return "all"
}

// Supported lists every canonical language in table order.
func (m *Mapper) Supported() []Language {
	out := make([]Language, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.language())
	}
	return out
}

func (e entry) language() Language {
	return Language{Code: e.code, Name: e.name, Alpha3: e.alpha3}
}

func splitFlags(token string) (string, bool, bool) {
	token = strings.TrimSpace(token)
	lower := strings.ToLower(token)
	switch {
	case strings.HasSuffix(lower, ":hi"):
		return token[:len(token)-3], true, false
	case strings.HasSuffix(lower, ":forced"):
		return token[:len(token)-7], false, true
	}
	return token, false, false
}

// fold lower-cases, strips diacritics and normalizes separators so that
// "Français", "FRANCAIS" and "francais" produce the same key.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(strings.TrimSpace(out))
	out = strings.ReplaceAll(out, "_", "-")
	return strings.Join(strings.Fields(out), " ")
}

// UnmarshalJSON accepts either a token string ("en", "English", "pt-BR:hi") or an object.
func (l *Language) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		*l = Resolve(token)
		return nil
	}
	type plain Language
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid language: %w", err)
	}
	resolved := Resolve(p.Code)
	resolved.HearingImpaired = p.HearingImpaired
	resolved.Forced = p.Forced
	*l = resolved
	return nil
}
