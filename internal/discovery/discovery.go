// Package discovery polls the upstream observation site's index page and
// extracts the set of currently tracked storms with their history file and
// satellite image URLs.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stormtrack/stormtrack/internal/fetch"
	"github.com/stormtrack/stormtrack/internal/model"
)

// indexPage is the index document name under the discovery base URL.
const indexPage = "adt.html"

var (
	detailHrefRe  = regexp.MustCompile(`odt(\d{2}[A-Z])\.html`)
	historyHrefRe = regexp.MustCompile(`(\d{2}[A-Z])-list\.txt`)
	leadingSepRe  = regexp.MustCompile(`^[-:\s]+`)
	trailingSepRe = regexp.MustCompile(`[-:\s]+$`)
)

// classPrefixes are storm classification words stripped from link text when
// extracting the bare storm name.
var classPrefixes = []string{
	"Tropical Storm",
	"Hurricane",
	"Typhoon",
	"Cyclone",
	"Tropical Depression",
}

// placeholderNames are link-text remainders that mean the storm is unnamed.
var placeholderNames = map[string]struct{}{
	"":        {},
	"UNNAMED": {},
	"INVEST":  {},
	"TD":      {},
}

// Discovered is one storm found on the index page.
type Discovered struct {
	Code              string
	Basin             model.Basin
	Name              *string
	HistoryURL        string
	SatelliteImageURL *string
}

// Service discovers active storms from the upstream index.
type Service struct {
	client  *fetch.Client
	baseURL string
	logger  *slog.Logger
}

// NewService builds a discovery Service rooted at baseURL.
func NewService(client *fetch.Client, baseURL string, logger *slog.Logger) *Service {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Service{client: client, baseURL: baseURL, logger: logger}
}

// Discover fetches the index page and resolves every storm detail page it
// links to. A 304 on the index returns (nil, false, nil): nothing changed.
// Detail pages that fail to fetch or parse are skipped with a warning; a
// partial result is still useful.
func (s *Service) Discover(ctx context.Context) ([]Discovered, bool, error) {
	indexURL := s.baseURL + indexPage

	result, err := s.client.Fetch(ctx, indexURL)
	if err != nil {
		return nil, false, fmt.Errorf("fetch index: %w", err)
	}

	if result.Kind == fetch.OutcomeNotModified {
		return nil, false, nil
	}

	if result.Kind != fetch.OutcomeFetched {
		return nil, false, fmt.Errorf("fetch index: unexpected outcome %s", result.Kind)
	}

	entries, parseErr := parseIndex(result.Body)
	if parseErr != nil {
		return nil, false, fmt.Errorf("parse index: %w", parseErr)
	}

	storms := make([]Discovered, 0, len(entries))

	for _, entry := range entries {
		storm, detailErr := s.resolveDetail(ctx, entry)
		if detailErr != nil {
			s.logger.Warn("skipping storm detail page",
				"code", entry.code, "error", detailErr)

			continue
		}

		storms = append(storms, storm)
	}

	return storms, true, nil
}

// indexEntry is one detail-page link found on the index.
type indexEntry struct {
	code string
	href string
	text string
}

// parseIndex extracts detail-page links from the index HTML, deduplicated by
// storm code in document order.
func parseIndex(html []byte) ([]indexEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]struct{})

	var entries []indexEntry

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")

		if !strings.HasPrefix(href, "odt") || !strings.HasSuffix(href, ".html") {
			return
		}

		match := detailHrefRe.FindStringSubmatch(href)
		if match == nil {
			return
		}

		code := match[1]
		if _, dup := seen[code]; dup {
			return
		}

		seen[code] = struct{}{}

		entries = append(entries, indexEntry{
			code: code,
			href: href,
			text: strings.TrimSpace(sel.Text()),
		})
	})

	return entries, nil
}

// resolveDetail fetches one storm detail page and extracts the history file
// URL, satellite image URL, basin, and name.
func (s *Service) resolveDetail(ctx context.Context, entry indexEntry) (Discovered, error) {
	detailURL := s.absoluteURL(entry.href)

	// Detail pages are only read when the index changed, so conditional
	// requests buy nothing here. Always take the full body.
	s.client.Forget(detailURL)

	result, err := s.client.Fetch(ctx, detailURL)
	if err != nil {
		return Discovered{}, fmt.Errorf("fetch detail: %w", err)
	}

	if result.Kind != fetch.OutcomeFetched {
		return Discovered{}, fmt.Errorf("fetch detail: outcome %s", result.Kind)
	}

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if docErr != nil {
		return Discovered{}, fmt.Errorf("parse detail: %w", docErr)
	}

	historyHref, code, found := findHistoryLink(doc)
	if !found {
		return Discovered{}, fmt.Errorf("no history file link")
	}

	basin, ok := model.BasinFromStormCode(code)
	if !ok {
		return Discovered{}, fmt.Errorf("unknown basin for code %s", code)
	}

	storm := Discovered{
		Code:       code,
		Basin:      basin,
		Name:       ExtractName(entry.text, code),
		HistoryURL: s.absoluteURL(historyHref),
	}

	if imgHref, imgFound := findSatelliteImage(doc, code); imgFound {
		imgURL := s.absoluteURL(imgHref)
		storm.SatelliteImageURL = &imgURL
	}

	return storm, nil
}

// findHistoryLink locates the *-list.txt link and returns its href and the
// storm code embedded in the file name.
func findHistoryLink(doc *goquery.Document) (href, code string, found bool) {
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		candidate, _ := sel.Attr("href")

		match := historyHrefRe.FindStringSubmatch(candidate)
		if match == nil {
			return true
		}

		href = candidate
		code = match[1]
		found = true

		return false
	})

	return href, code, found
}

// findSatelliteImage locates the storm's satellite image: first a link ending
// in <code>.GIF, then any img whose src mentions the code.
func findSatelliteImage(doc *goquery.Document, code string) (string, bool) {
	var href string

	suffix := code + ".GIF"

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		candidate, _ := sel.Attr("href")
		if strings.HasSuffix(candidate, suffix) {
			href = candidate

			return false
		}

		return true
	})

	if href != "" {
		return href, true
	}

	doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		candidate, _ := sel.Attr("src")
		if strings.Contains(candidate, code) {
			href = candidate

			return false
		}

		return true
	})

	return href, href != ""
}

// ExtractName derives the bare storm name from index link text. Prefixed
// classification words and the storm code are stripped; placeholder values
// yield nil.
func ExtractName(linkText, code string) *string {
	text := linkText
	for _, prefix := range classPrefixes {
		text = strings.TrimSpace(strings.ReplaceAll(text, prefix, ""))
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, code, ""))
	text = leadingSepRe.ReplaceAllString(text, "")
	text = trailingSepRe.ReplaceAllString(text, "")

	upper := strings.ToUpper(text)
	if _, placeholder := placeholderNames[upper]; placeholder {
		return nil
	}

	return &upper
}

func (s *Service) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	return s.baseURL + href
}
