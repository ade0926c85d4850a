package site

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/review-catalog/internal/catalog"
)

const (
	// DefaultFeedItems is how many of the newest records the feed carries.
	DefaultFeedItems = 50

	feedDescriptionRunes = 180
	rfc822Z              = "Mon, 02 Jan 2006 15:04:05 -0700"
	sitemapNS            = "http://www.sitemaps.org/schemas/sitemap/0.9"
	sitemapStub          = xml.Header + "<!-- site URL is not configured; sitemap locations cannot be generated -->\n"
)

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// Sitemap lists every emitted page under baseURL. Without a base URL the
// locations cannot be absolute, so only a stub document is produced.
func Sitemap(baseURL string, paths []string) ([]byte, error) {
	if baseURL == "" {
		return []byte(sitemapStub), nil
	}
	set := urlset{NS: sitemapNS, URLs: make([]sitemapURL, 0, len(paths))}
	for _, p := range paths {
		set.URLs = append(set.URLs, sitemapURL{Loc: baseURL + strings.TrimPrefix(p, "/")})
	}
	return marshalXML(set)
}

// Robots keeps crawlers out of the search shards and points at the sitemap
// when one can exist.
func Robots(baseURL, shardDir string) []byte {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	fmt.Fprintf(&b, "Disallow: /assets/%s/\n", strings.Trim(shardDir, "/"))
	b.WriteString("Disallow:\n")
	if baseURL != "" {
		fmt.Fprintf(&b, "Sitemap: %ssitemap.xml\n", baseURL)
	}
	return []byte(b.String())
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
}

// Feed renders an RSS 2.0 document for the first limit records of newest.
// ok is false when there is no base URL, in which case no feed is written.
func Feed(baseURL, siteName string, newest []*catalog.Record, limit int, now time.Time) (body []byte, ok bool, err error) {
	if baseURL == "" {
		return nil, false, nil
	}
	if limit <= 0 {
		limit = DefaultFeedItems
	}
	doc := rss{
		Version: "2.0",
		Channel: rssChannel{
			Title:         siteName,
			Link:          baseURL,
			Description:   siteName + " - Latest updates",
			LastBuildDate: now.Format(rfc822Z),
		},
	}
	for _, r := range newest[:min(limit, len(newest))] {
		link := baseURL + r.Path()
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       r.Title,
			Link:        link,
			GUID:        link,
			Description: truncateRunes(r.Description, feedDescriptionRunes),
		})
	}
	body, err = marshalXML(doc)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func marshalXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
