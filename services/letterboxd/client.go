package letterboxd

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"timeboxd/models"
)

const defaultBaseURL = "https://letterboxd.com"

// Client scrapes the Letterboxd public site: the paginated watchlist grid
// and individual film pages. Letterboxd has no public API, so this is
// HTML parsing with a polite inter-page delay.
type Client struct {
	httpClient *http.Client
	baseURL    string
	pageDelay  time.Duration
}

// NewClient creates a Letterboxd scraping client. pageDelay spaces out
// watchlist page fetches.
func NewClient(httpClient *http.Client, baseURL string, pageDelay time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		pageDelay:  pageDelay,
	}
}

// Watchlist fetches a user's entire watchlist ordered by release date.
// It stops paging once a page is empty, yields no new slugs, or every
// film on it predates cutoffYear; entries are deduplicated by slug.
func (c *Client) Watchlist(ctx context.Context, username string, cutoffYear int) ([]models.WatchlistEntry, error) {
	var out []models.WatchlistEntry
	seen := make(map[string]bool)

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/%s/watchlist/by/release/", c.baseURL, username)
		if page > 1 {
			url = fmt.Sprintf("%s/%s/watchlist/by/release/page/%d/", c.baseURL, username, page)
		}

		doc, err := c.fetchDocument(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("watchlist page %d for %s: %w", page, username, err)
		}

		films := parseWatchlistPage(doc)
		if len(films) == 0 {
			break
		}

		allOld := true
		added := 0
		for _, film := range films {
			if film.Year == 0 || film.Year >= cutoffYear {
				allOld = false
			}
			if !seen[film.Slug] {
				seen[film.Slug] = true
				out = append(out, film)
				added++
			}
		}
		// A page of nothing but known slugs means the site is repeating
		// itself for out-of-range page numbers.
		if allOld || added == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pageDelay + time.Duration(rand.Intn(150))*time.Millisecond):
		}
	}

	return out, nil
}

// Film fetches a film's detail page by slug: the canonical title and year
// from og:title plus the TMDB ID Letterboxd embeds when it knows one.
func (c *Client) Film(ctx context.Context, slug string) (*models.FilmDetail, error) {
	doc, err := c.fetchDocument(ctx, fmt.Sprintf("%s/film/%s/", c.baseURL, slug))
	if err != nil {
		return nil, fmt.Errorf("film page for %s: %w", slug, err)
	}

	detail := &models.FilmDetail{}

	if body := findElement(doc, "body"); body != nil {
		if raw := attr(body, "data-tmdb-id"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				detail.TMDBID = id
			}
		}
	}
	if detail.TMDBID == 0 {
		walk(doc, func(n *html.Node) {
			if detail.TMDBID != 0 || n.Type != html.ElementNode || n.Data != "a" {
				return
			}
			if href := attr(n, "href"); strings.Contains(href, "themoviedb.org") {
				detail.TMDBID = tmdbIDFromURL(href)
			}
		})
	}

	var ogTitle string
	walk(doc, func(n *html.Node) {
		if ogTitle == "" && n.Type == html.ElementNode && n.Data == "meta" && attr(n, "property") == "og:title" {
			ogTitle = attr(n, "content")
		}
	})
	if ogTitle == "" {
		return nil, fmt.Errorf("film page for %s: no og:title", slug)
	}
	detail.Title, detail.Year = SplitTrailingYear(ogTitle)

	return detail, nil
}

// fetchDocument GETs a page and parses it as HTML.
func (c *Client) fetchDocument(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Referer", c.baseURL+"/")
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// parseWatchlistPage pulls the film grid items out of a watchlist page.
// Each item is a react-component div carrying data-item-slug and
// data-item-name ("Title (2024)") attributes.
func parseWatchlistPage(doc *html.Node) []models.WatchlistEntry {
	var out []models.WatchlistEntry
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "div" {
			return
		}
		slug := attr(n, "data-item-slug")
		name := attr(n, "data-item-name")
		if slug == "" || name == "" {
			return
		}
		_, year := SplitTrailingYear(name)
		out = append(out, models.WatchlistEntry{Slug: slug, Year: year})
	})
	return out
}

// SplitTrailingYear splits "Title (2024)" into its title and year parts.
// Titles without a well-formed trailing year come back whole with year 0.
func SplitTrailingYear(s string) (string, int) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ")") {
		return s, 0
	}
	open := strings.LastIndex(s, "(")
	if open < 0 {
		return s, 0
	}
	inside := s[open+1 : len(s)-1]
	if len(inside) != 4 {
		return s, 0
	}
	year, err := strconv.Atoi(inside)
	if err != nil {
		return s, 0
	}
	return strings.TrimSpace(s[:open]), year
}

// tmdbIDFromURL extracts the numeric ID from a themoviedb.org movie or TV
// URL.
func tmdbIDFromURL(url string) int64 {
	for _, prefix := range []string{"/movie/", "/tv/"} {
		idx := strings.Index(url, prefix)
		if idx < 0 {
			continue
		}
		rest := url[idx+len(prefix):]
		if end := strings.IndexAny(rest, "/-?"); end >= 0 {
			rest = rest[:end]
		}
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return id
		}
	}
	return 0
}

// walk applies fn to every node in the tree in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		walk(child, fn)
	}
}

// findElement returns the first element with the given tag name.
func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
