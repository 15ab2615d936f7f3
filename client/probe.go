package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brensch/tetrisbot/session"
)

// ProbeURLs lists the URLs checked when a session's connection breaks: the
// session root, the same path without the /tetris/ segment, and the API root.
func (c Config) ProbeURLs(sessionID string) []string {
	base := c.BaseURL(sessionID)
	urls := []string{base}
	if alt := strings.Replace(base, "/tetris/", "/", 1); alt != base {
		urls = append(urls, alt)
	}
	if i := strings.Index(base, "/api/"); i >= 0 {
		urls = append(urls, base[:i]+"/api")
	}
	return urls
}

// Probe reports what each diagnostic URL answers. It never fails as a whole;
// per-URL errors are carried in the results.
func (c *HTTPClient) Probe(ctx context.Context, sessionID string) []ProbeResult {
	return probe(ctx, c.client, c.config, sessionID)
}

// ProbeResult is re-exported so callers need not import session.
type ProbeResult = session.ProbeResult

func probe(ctx context.Context, hc *http.Client, config Config, sessionID string) []ProbeResult {
	var results []ProbeResult
	for _, u := range config.ProbeURLs(sessionID) {
		results = append(results, probeOne(ctx, hc, config.UserAgent, u))
	}
	return results
}

func probeOne(ctx context.Context, hc *http.Client, userAgent, u string) ProbeResult {
	res := ProbeResult{URL: u}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := hc.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		res.Err = fmt.Errorf("read body: %w", err)
		return res
	}
	res.Summary = summarize(res.ContentType, body)
	return res
}

// summarize returns the page title of an HTML body, otherwise its first 100 bytes.
func summarize(contentType string, body []byte) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "text/html" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return "html: " + title
			}
			if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
				return "html: " + h1
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)), 100)
}
