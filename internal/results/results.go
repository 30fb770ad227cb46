// Package results discovers result spreadsheets linked from a
// federation results page and registers them in the ledger.
package results

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"liftsync/internal"
	"liftsync/internal/logging"
	"liftsync/internal/storage"
)

const maxDownloadBytes = 32 << 20

type Link struct {
	URL   string
	Title string
	Name  string
}

type Scraper struct {
	httpClient *http.Client
	inbox      *storage.Inbox
}

func NewScraper(inbox *storage.Inbox, timeout time.Duration) *Scraper {
	return &Scraper{httpClient: &http.Client{Timeout: timeout}, inbox: inbox}
}

type FetchResult struct {
	Found  int
	New    int
	Failed int
}

// Fetch downloads every spreadsheet linked from pageURL. A link that
// cannot be downloaded is logged and counted; the rest go on.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (FetchResult, error) {
	links, err := s.Links(ctx, pageURL)
	if err != nil {
		return FetchResult{}, err
	}
	res := FetchResult{Found: len(links)}
	log := logging.FromContext(ctx)
	for _, link := range links {
		content, err := s.get(ctx, link.URL)
		if err != nil {
			res.Failed++
			log.Warn("download failed", "url", link.URL, "error", err)
			continue
		}
		_, created, err := s.inbox.Add(internal.FileSourceWeb, link.URL, link.Name, content)
		if err != nil {
			return res, err
		}
		if created {
			res.New++
			log.Info("results file registered", "url", link.URL, "title", link.Title)
		}
	}
	return res, nil
}

// Links lists the .xls and .xlsx links of a page, resolved against it,
// in page order without repeats.
func (s *Scraper) Links(ctx context.Context, pageURL string) ([]Link, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	body, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	out := []Link{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		name, ok := spreadsheetName(abs)
		if !ok {
			return
		}
		abs.Fragment = ""
		key := abs.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, Link{URL: key, Title: strings.Join(strings.Fields(a.Text()), " "), Name: name})
	})
	return out, nil
}

func spreadsheetName(u *url.URL) (string, bool) {
	name := path.Base(u.Path)
	switch strings.ToLower(path.Ext(name)) {
	case ".xls", ".xlsx":
		return name, true
	}
	return "", false
}

func (s *Scraper) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "liftsync/1")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxDownloadBytes {
		return nil, fmt.Errorf("GET %s: larger than %d bytes", target, maxDownloadBytes)
	}
	return body, nil
}
