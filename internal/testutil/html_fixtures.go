package testutil

import (
	"fmt"
	"html"
	"strings"
)

// IntPtr is a helper for creating *int values in tests
func IntPtr(v int) *int {
	return &v
}

// Float64Ptr is a helper for creating *float64 values in tests
func Float64Ptr(v float64) *float64 {
	return &v
}

// SearchRowOptions contains options for generating a search result row
type SearchRowOptions struct {
	Href          string // "/en/search/sublanguageid-all/idmovie-19984"
	Title         string // "Avatar (2009)"
	IMDBID        string // "tt0499549"
	SubtitleCount int
	TVSeries      bool
	Ad            bool
	NoLink        bool
}

// SubtitleRowOptions contains options for generating a subtitle listing row
type SubtitleRowOptions struct {
	SubtitleID    int
	Slug          string // "avatar-en"
	Title         string
	Release       string
	LanguageTitle string // title attribute of the sublanguage link, "English"
	LanguageCode  string // sublanguageid in the link, "eng"
	FlagClass     string // flag sprite class, "gb"
	UploadDate    string // "24/12/2009"
	FPS           string // "23.976"
	Downloads     int
	Rating        string
	Votes         int
	Uploader      string
	HearingIcon   bool
	ForeignIcon   bool
	NoServeLink   bool
}

// EpisodeRowOptions contains options for generating an episode row on a series page
type EpisodeRowOptions struct {
	Season  int
	Episode int
	Title   string
	IMDBID  int
	// OmitNumber drops the itemprop episode number so the extractor falls back to ordinals.
	OmitNumber bool
}

const pageHeader = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<div id="content">
`

const pageFooter = `
</div>
</body>
</html>`

// GenerateSearchPageHTML generates a search results page in the opensubtitles.org layout
func GenerateSearchPageHTML(rows []SearchRowOptions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, pageHeader, "Subtitles - OpenSubtitles.org")
	sb.WriteString(`<table id="search_results">
	<tbody>
		<tr><th>Movie name</th><th>IMDB</th><th>Subtitles</th></tr>
`)

	for i, row := range rows {
		if row.Ad {
			sb.WriteString(`		<tr class="ads"><td colspan="3"><iframe src="/ads"></iframe></td></tr>
`)
			continue
		}

		kindIcon := ""
		if row.TVSeries {
			kindIcon = `<img src="/gfx/icons/tv-series.gif" title="TV Series" alt="TV Series">`
		}

		title := html.EscapeString(row.Title)
		titleHTML := fmt.Sprintf(`<strong><a class="bnone" href="%s" title="subtitles - %s">%s</a></strong>`, row.Href, title, title)
		if row.NoLink {
			titleHTML = fmt.Sprintf(`<strong>%s</strong>`, title)
		}

		imdbHTML := "&nbsp;"
		if row.IMDBID != "" {
			imdbHTML = fmt.Sprintf(`<a href="https://www.imdb.com/title/%s/" target="_blank">IMDb</a>`, row.IMDBID)
		}

		fmt.Fprintf(&sb, `		<tr id="name%d" class="change %s">
			<td id="main%d">%s %s<br>Watch online</td>
			<td align="center">%s</td>
			<td align="center">%d</td>
		</tr>
`, i, rowParity(i), i, kindIcon, titleHTML, imdbHTML, row.SubtitleCount)
	}

	sb.WriteString(`	</tbody>
</table>`)
	sb.WriteString(pageFooter)
	return sb.String()
}

// GenerateListingPageHTML generates a subtitle listing page in the opensubtitles.org layout
func GenerateListingPageHTML(title string, rows []SubtitleRowOptions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, pageHeader, title+" subtitles")
	fmt.Fprintf(&sb, `<h1>%s</h1>
<table id="search_results">
	<tbody>
		<tr><th>Movie name</th><th>Language</th><th>CD</th><th>Uploaded</th><th>Downloads</th><th>Rating</th><th>Uploader</th></tr>
		<tr><td colspan="7"><iframe src="/ads"></iframe></td></tr>
`, title)

	for i, row := range rows {
		if row.SubtitleID == 0 {
			row.SubtitleID = 3000000 + i
		}
		if row.Slug == "" {
			row.Slug = "subtitle-en"
		}
		if row.Title == "" {
			row.Title = title
		}
		if row.LanguageCode == "" {
			row.LanguageCode = "all"
		}

		flagHTML := ""
		if row.FlagClass != "" {
			flagHTML = fmt.Sprintf(`<div class="flag %s"></div>`, row.FlagClass)
		}
		langTitle := ""
		if row.LanguageTitle != "" {
			langTitle = fmt.Sprintf(` title="%s"`, row.LanguageTitle)
		}

		icons := ""
		if row.HearingIcon {
			icons += `<img src="/gfx/icons/hearing_impaired.gif" title="Subtitles for hearing impaired" alt="">`
		}
		if row.ForeignIcon {
			icons += `<img src="/gfx/icons/foreign.gif" title="Foreign parts only" alt="">`
		}

		fpsHTML := ""
		if row.FPS != "" {
			fpsHTML = fmt.Sprintf(`<br><span class="p">%s</span>`, row.FPS)
		}

		serveHTML := ""
		if !row.NoServeLink {
			serveHTML = fmt.Sprintf(`<a href="/en/subtitleserve/sub/%d" rel="nofollow">%dx</a><br><span class="p">srt</span>`, row.SubtitleID, row.Downloads)
		}

		ratingHTML := ""
		if row.Rating != "" {
			ratingHTML = fmt.Sprintf(`<span title="%d votes">%s</span>`, row.Votes, row.Rating)
		}

		uploaderHTML := ""
		if row.Uploader != "" {
			uploaderHTML = fmt.Sprintf(`<a href="/en/profile/iduser-%d">%s</a>`, 100+i, row.Uploader)
		}

		fmt.Fprintf(&sb, `		<tr id="name%d" class="change %s expandable">
			<td id="main%d"><strong><a class="bnone" href="/en/subtitles/%d/%s" title="subtitles - %s">%s</a></strong><br>%s<br><a class="p" href="/en/watch">Watch online</a>%s</td>
			<td align="center"><a href="/en/search/sublanguageid-%s/idmovie-19984"%s>%s</a></td>
			<td align="center">1CD</td>
			<td align="center" title="%s">%s%s</td>
			<td align="center">%s</td>
			<td align="center">%s</td>
			<td>%s</td>
		</tr>
`,
			row.SubtitleID, rowParity(i),
			row.SubtitleID, row.SubtitleID, row.Slug, row.Title, row.Title, row.Release, icons,
			row.LanguageCode, langTitle, flagHTML,
			row.UploadDate, row.UploadDate, fpsHTML,
			serveHTML,
			ratingHTML,
			uploaderHTML,
		)
	}

	sb.WriteString(`	</tbody>
</table>`)
	sb.WriteString(pageFooter)
	return sb.String()
}

// GenerateSeriesPageHTML generates a series page listing seasons and episodes
func GenerateSeriesPageHTML(title string, episodes []EpisodeRowOptions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, pageHeader, title)
	fmt.Fprintf(&sb, `<h1>%s</h1>
<table id="search_results">
	<tbody>
`, title)

	currentSeason := 0
	for _, ep := range episodes {
		if ep.Season != currentSeason {
			currentSeason = ep.Season
			fmt.Fprintf(&sb, `		<tr><td colspan="5"><span id="season-%d"><a><b>Season %d</b></a></span></td></tr>
`, ep.Season, ep.Season)
		}
		number := ""
		if !ep.OmitNumber {
			number = fmt.Sprintf(`<span itemprop="episodeNumber">%d</span>. `, ep.Episode)
		}
		fmt.Fprintf(&sb, `		<tr itemprop="episode" itemscope>
			<td>%s<a itemprop="url" href="/en/search/sublanguageid-all/imdbid-%d"><span itemprop="name">%s</span></a></td>
			<td>12</td>
		</tr>
`, number, ep.IMDBID, ep.Title)
	}

	sb.WriteString(`	</tbody>
</table>`)
	sb.WriteString(pageFooter)
	return sb.String()
}

// GenerateNoResultsPageHTML generates a page without a results table that says nothing was found
func GenerateNoResultsPageHTML() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, pageHeader, "Search - OpenSubtitles.org")
	sb.WriteString(`<div class="msg hint">No results found. Try a different spelling.</div>`)
	sb.WriteString(pageFooter)
	return sb.String()
}

// GenerateUnrecognizedPageHTML generates a page with neither a results table nor a no-results marker
func GenerateUnrecognizedPageHTML() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, pageHeader, "OpenSubtitles.org redesigned")
	sb.WriteString(`<div class="grid"><div class="card"><a href="/movies/avatar">Avatar</a></div></div>`)
	sb.WriteString(pageFooter)
	return sb.String()
}

// GenerateDownloadPageHTML generates an HTML download page that links to the file
func GenerateDownloadPageHTML(link string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, pageHeader, "Download subtitles")
	fmt.Fprintf(&sb, `<p>Your download will start shortly.</p><a href="%s" id="bt-dwl">Download</a>`, link)
	sb.WriteString(pageFooter)
	return sb.String()
}

// SampleSRT is a minimal valid SubRip file
const SampleSRT = "1\r\n00:00:01,000 --> 00:00:04,000\r\nHello world\r\n\r\n2\r\n00:00:05,000 --> 00:00:08,000\r\nSecond line\r\n"

func rowParity(i int) string {
	if i%2 == 0 {
		return "even"
	}
	return "odd"
}
