// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package headlines reads recent news headlines from an RSS or Atom feed to
// ground the content request.
package headlines

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/greekangels/cryptodigest/internal/request"
)

// Window is how far back an item may be published to be included.
const Window = 24 * time.Hour

// Source fetches headlines from a single feed.
type Source struct {
	URL string
	// Limit caps the number of headlines. Defaults to 5.
	Limit int
	// HTTPClient is optional.
	HTTPClient *http.Client

	fp *gofeed.Parser
}

// New returns a Source for url.
func New(url string, limit int, client *http.Client) *Source {
	if limit <= 0 {
		limit = 5
	}
	return &Source{URL: url, Limit: limit, HTTPClient: client, fp: gofeed.NewParser()}
}

// Recent returns the titles of items published within [Window] before now,
// newest first. Items without a publication date are skipped.
func (s *Source) Recent(ctx context.Context, now time.Time) ([]string, error) {
	b, err := request.Fetch(ctx, request.Params{
		URL:        s.URL,
		HTTPClient: s.HTTPClient,
		Headers:    map[string]string{"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"},
		MaxBytes:   5 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching headlines: %w", err)
	}
	feed, err := s.fp.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parsing headlines feed: %w", err)
	}
	return pick(feed.Items, now, s.Limit), nil
}

func pick(items []*gofeed.Item, now time.Time, limit int) []string {
	type dated struct {
		title string
		at    time.Time
	}
	var recent []dated
	cutoff := now.Add(-Window)
	for _, it := range items {
		at := it.PublishedParsed
		if at == nil {
			at = it.UpdatedParsed
		}
		if at == nil || at.Before(cutoff) || at.After(now) {
			continue
		}
		title := strings.Join(strings.Fields(it.Title), " ")
		if title == "" {
			continue
		}
		recent = append(recent, dated{title, *at})
	}

	slices.SortStableFunc(recent, func(a, b dated) int { return b.at.Compare(a.at) })
	if len(recent) > limit {
		recent = recent[:limit]
	}

	titles := make([]string, len(recent))
	for i, d := range recent {
		titles[i] = d.title
	}
	return titles
}
