package provider

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/LavX/opensubtitles-scraper/internal/config"
	"github.com/LavX/opensubtitles-scraper/internal/language"
	"github.com/LavX/opensubtitles-scraper/internal/models"

	"github.com/agnivade/levenshtein"
	"github.com/samber/lo"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	nonDigits       = regexp.MustCompile(`\D`)
)

// DefaultRanking is used when the configured weights are all zero.
var DefaultRanking = config.RankingConfig{
	ExactMatch:    100,
	Containment:   80,
	Similarity:    60,
	YearMatch:     10,
	IMDBMatch:     20,
	YearTolerance: 1,
	MinScore:      30,
}

// normalizeTitle folds case, accents and punctuation so "Amélie!" and "amelie" compare equal.
func normalizeTitle(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = nonAlphanumeric.ReplaceAllString(strings.ToLower(out), " ")
	return strings.Join(strings.Fields(out), " ")
}

func imdbNumber(id string) string {
	return strings.TrimLeft(nonDigits.ReplaceAllString(id, ""), "0")
}

// similarity is 1 for identical strings and 0 for completely different ones.
func similarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// scoreResult weighs a search result against the query.
func scoreResult(r models.SearchResult, q models.SearchQuery, w config.RankingConfig) float64 {
	title := normalizeTitle(r.Title)
	want := normalizeTitle(q.Title)

	score := 0.0
	switch {
	case want == "":
	case title == want:
		score += w.ExactMatch
	default:
		if title != "" && (strings.Contains(title, want) || strings.Contains(want, title)) {
			score += w.Containment
		}
		score += similarity(title, want) * w.Similarity
	}

	if q.Year > 0 && r.Year > 0 && int(math.Abs(float64(q.Year-r.Year))) <= w.YearTolerance {
		score += w.YearMatch
	}
	if q.IMDBID != "" && r.IMDBID != "" && imdbNumber(q.IMDBID) == imdbNumber(r.IMDBID) {
		score += w.IMDBMatch
	}
	return score
}

// bestMatch prefers the first result carrying the queried IMDB ID, then the
// first exact title and year match, then the highest score at or above the
// minimum. Ties keep the earlier result.
func bestMatch(results []models.SearchResult, q models.SearchQuery, w config.RankingConfig) (models.SearchResult, bool) {
	if id := imdbNumber(q.IMDBID); id != "" {
		byID, ok := lo.Find(results, func(r models.SearchResult) bool {
			return imdbNumber(r.IMDBID) == id
		})
		if ok {
			return byID, true
		}
	}

	want := normalizeTitle(q.Title)
	if want != "" {
		exact, ok := lo.Find(results, func(r models.SearchResult) bool {
			return normalizeTitle(r.Title) == want && (q.Year == 0 || r.Year == q.Year)
		})
		if ok {
			return exact, true
		}
	}

	bestIdx, bestScore := -1, 0.0
	for i, r := range results {
		s := scoreResult(r, q, w)
		if s < w.MinScore {
			continue
		}
		if bestIdx < 0 || s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	if bestIdx < 0 {
		return models.SearchResult{}, false
	}
	return results[bestIdx], true
}

// filterLanguages keeps the entries in one of the requested languages. With no
// languages requested every entry is kept, Unknown included.
func filterLanguages(entries []models.SubtitleEntry, languages []language.Language) []models.SubtitleEntry {
	entries = lo.UniqBy(entries, func(e models.SubtitleEntry) string { return e.ID })
	if len(languages) == 0 {
		return entries
	}
	codes := lo.Uniq(lo.Map(languages, func(l language.Language, _ int) string { return l.Code }))
	return lo.Filter(entries, func(e models.SubtitleEntry, _ int) bool {
		return !e.Language.IsUnknown() && lo.Contains(codes, e.Language.Code)
	})
}

// languageRank is lower for a better fit: an exact code and flag match beats a
// code-only match, and earlier requested languages beat later ones.
func languageRank(e models.SubtitleEntry, languages []language.Language) int {
	if len(languages) == 0 {
		return 0
	}
	best := math.MaxInt
	for i, l := range languages {
		if l.Code != e.Language.Code {
			continue
		}
		rank := 2*i + 1
		if l.HearingImpaired == e.HearingImpaired && l.Forced == e.Forced {
			rank = 2 * i
		}
		best = min(best, rank)
	}
	return best
}

// rankEntries orders entries by language fit, downloads, rating and upload time.
func rankEntries(entries []models.SubtitleEntry, languages []language.Language) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if ra, rb := languageRank(a, languages), languageRank(b, languages); ra != rb {
			return ra < rb
		}
		if da, db := intOrZero(a.DownloadCount), intOrZero(b.DownloadCount); da != db {
			return da > db
		}
		if ra, rb := floatOrZero(a.Rating), floatOrZero(b.Rating); ra != rb {
			return ra > rb
		}
		switch {
		case a.UploadedAt == nil || b.UploadedAt == nil:
			return a.UploadedAt != nil && b.UploadedAt == nil
		default:
			return a.UploadedAt.After(*b.UploadedAt)
		}
	})
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
