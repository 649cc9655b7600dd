package language

import (
	"encoding/json"
	"testing"
)

func TestMapper_AliasesResolveToCanonical(t *testing.T) {
	t.Parallel()
	m := NewMapper()

	for _, lang := range m.Supported() {
		canonical := m.Resolve(lang.Code)
		if canonical.IsUnknown() {
			t.Fatalf("canonical code %q resolved to Unknown", lang.Code)
		}
		for _, alias := range m.Aliases(lang.Code) {
			if got := m.Resolve(alias); got != canonical {
				t.Errorf("Resolve(%q) = %+v, want %+v", alias, got, canonical)
			}
		}
	}
}

func TestMapper_Resolve(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"iso 639-1", "en", "en"},
		{"iso 639-1 upper", "EN", "en"},
		{"iso 639-2/B", "ger", "de"},
		{"iso 639-2/T", "deu", "de"},
		{"english name", "English", "en"},
		{"name with padding", "  french  ", "fr"},
		{"native name with accents", "Français", "fr"},
		{"native name accent stripped", "FRANCAIS", "fr"},
		{"accent in token only", "Espańol", "es"},
		{"site code brazilian", "pob", "pt-BR"},
		{"site flag brazilian", "pb", "pt-BR"},
		{"site code serbian", "scc", "sr"},
		{"underscore region", "pt_BR", "pt-BR"},
		{"bcp47 region fallback", "en-AU", "en"},
		{"bcp47 three letter fallback", "fra-CA", "fr"},
		{"traditional chinese", "zh-Hant", "zh-TW"},
		{"site flag bilingual chinese", "ze", "ze"},
		{"site code bilingual chinese", "ZHE", "ze"},
		{"hungarian native", "Magyar", "hu"},
		{"cyrillic native", "Русский", "ru"},
		{"unknown code", "xx", "und"},
		{"unknown word", "klingonese", "und"},
		{"empty", "", "und"},
		{"only spaces", "   ", "und"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Resolve(tt.token); got.Code != tt.want {
				t.Errorf("Resolve(%q).Code = %q, want %q", tt.token, got.Code, tt.want)
			}
		})
	}
}

func TestMapper_ResolveFlags(t *testing.T) {
	t.Parallel()

	hi := Resolve("en:hi")
	if hi.Code != "en" || !hi.HearingImpaired || hi.Forced {
		t.Errorf("Resolve(en:hi) = %+v", hi)
	}

	forced := Resolve("Portuguese (Brazil):FORCED")
	if forced.Code != "pt-BR" || !forced.Forced || forced.HearingImpaired {
		t.Errorf("Resolve(pt-BR forced) = %+v", forced)
	}

	if forced.Base() != Resolve("pob") {
		t.Errorf("Base() = %+v, want plain pt-BR", forced.Base())
	}
	if got := forced.String(); got != "pt-BR:forced" {
		t.Errorf("String() = %q", got)
	}
}

func TestMapper_UnknownNeverFails(t *testing.T) {
	t.Parallel()
	for _, token := range []string{"xx", "??", "en-", "-", "12", "sublanguageid-all"} {
		got := Resolve(token)
		if !got.IsUnknown() {
			t.Errorf("Resolve(%q) = %+v, want Unknown", token, got)
		}
	}
}

func TestMapper_SiteCode(t *testing.T) {
	t.Parallel()
	m := Default()
	tests := map[string]string{
		"en":    "eng",
		"fr":    "fre",
		"pt-BR": "pob",
		"sr":    "scc",
		"ze":    "zhe",
		"xx":    "all",
	}
	for token, want := range tests {
		if got := m.SiteCode(m.Resolve(token)); got != want {
			t.Errorf("SiteCode(%q) = %q, want %q", token, got, want)
		}
	}
}

func TestLanguage_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	var langs []Language
	data := `["English", "pt-BR:hi", {"code": "fre", "forced": true}, "xx"]`
	if err := json.Unmarshal([]byte(data), &langs); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(langs) != 4 {
		t.Fatalf("Expected 4 languages, got %d", len(langs))
	}
	if langs[0].Code != "en" {
		t.Errorf("langs[0] = %+v", langs[0])
	}
	if langs[1].Code != "pt-BR" || !langs[1].HearingImpaired {
		t.Errorf("langs[1] = %+v", langs[1])
	}
	if langs[2].Code != "fr" || !langs[2].Forced {
		t.Errorf("langs[2] = %+v", langs[2])
	}
	if !langs[3].IsUnknown() {
		t.Errorf("langs[3] = %+v", langs[3])
	}
}
