// Package collyfetcher implements placeholder.Prober using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/review-catalog/internal/metrics"
	"github.com/JakeFAU/review-catalog/internal/placeholder"
)

// ErrStatus is returned when the server answers with a 4xx or 5xx status.
var ErrStatus = errors.New("unexpected http status")

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Prober issues HEAD and ranged GET requests for image URLs.
type Prober struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// probeResult is filled by the collector callbacks.
type probeResult struct {
	status  int
	headers http.Header
	body    []byte
	err     error
}

// New builds a Prober.
func New(cfg Config) *Prober {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	)
	transport := newHTTPTransport()
	c.WithTransport(transport)
	return &Prober{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Head returns the ETag and Content-Length the server reports for url.
func (p *Prober) Head(ctx context.Context, url string) (placeholder.Meta, error) {
	collector, res := p.buildCollector(0)
	err := p.run(ctx, collector, http.MethodHead, url, nil, res)
	if err != nil {
		return placeholder.Meta{}, err
	}
	meta := placeholder.Meta{
		ETag:          strings.Trim(strings.TrimSpace(res.headers.Get("ETag")), `"`),
		ContentLength: -1,
	}
	if n, convErr := strconv.ParseInt(strings.TrimSpace(res.headers.Get("Content-Length")), 10, 64); convErr == nil {
		meta.ContentLength = n
	}
	return meta, nil
}

// FetchPrefix requests the first n bytes of url with a Range header. Servers
// that ignore Range are cut off after n bytes.
func (p *Prober) FetchPrefix(ctx context.Context, url string, n int) ([]byte, error) {
	if n <= 0 {
		n = placeholder.DefaultPrefixBytes
	}
	collector, res := p.buildCollector(n)
	hdr := http.Header{}
	hdr.Set("Range", fmt.Sprintf("bytes=0-%d", n-1))
	if err := p.run(ctx, collector, http.MethodGet, url, hdr, res); err != nil {
		return nil, err
	}
	body := res.body
	if len(body) > n {
		body = body[:n]
	}
	return body, nil
}

func (p *Prober) buildCollector(maxBody int) (*colly.Collector, *probeResult) {
	collector := p.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = true
	collector.MaxBodySize = maxBody
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	timeout := p.cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(p.transport)

	res := &probeResult{}
	configureCollectorHooks(collector, res)
	return collector, res
}

func configureCollectorHooks(hooks collectorHooks, res *probeResult) {
	hooks.OnResponse(func(r *colly.Response) {
		res.status = r.StatusCode
		if r.Headers != nil {
			res.headers = r.Headers.Clone()
		}
		res.body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.status = r.StatusCode
		}
		res.err = err
	})
}

func (p *Prober) run(
	ctx context.Context,
	collector *colly.Collector,
	method, url string,
	hdr http.Header,
	res *probeResult,
) error {
	done := make(chan error, 1)
	go func() {
		if method == http.MethodHead {
			done <- collector.Head(url)
			return
		}
		done <- collector.Request(method, url, nil, nil, hdr)
	}()

	select {
	case <-ctx.Done():
		metrics.ObserveProbe(url, method, 0)
		return fmt.Errorf("probe %s canceled: %w", method, ctx.Err())
	case err := <-done:
		metrics.ObserveProbe(url, method, res.status)
		if err != nil {
			return fmt.Errorf("probe %s %s: %w", method, url, err)
		}
		if res.err != nil {
			return fmt.Errorf("probe %s %s: %w", method, url, res.err)
		}
		if res.status >= http.StatusBadRequest {
			return fmt.Errorf("probe %s %s: %w: %d", method, url, ErrStatus, res.status)
		}
		if res.headers == nil {
			res.headers = http.Header{}
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
