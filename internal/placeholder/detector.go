package placeholder

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/mediaurl"
	"github.com/JakeFAU/review-catalog/internal/metrics"
)

// DefaultPrefixBytes is how much of an image is fetched for its signature.
const DefaultPrefixBytes = 8192

// KnownURLs are upstream placeholder images used by learning when no list is
// configured.
var KnownURLs = []string{
	"https://imgsrc.dmm.com/pics/mono/movie/n/now_printing/now_printing.jpg",
	"https://imgsrc.dmm.com/pics/mono/movie/n/now_printing/now_printing.jpg?w=800&f=.jpg&h=800&q=88",
	"https://pics.dmm.co.jp/mono/movie/n/now_printing/now_printing.jpg",
}

// Meta is what a HEAD request reveals about an image.
type Meta struct {
	ETag string
	// ContentLength is -1 when unknown.
	ContentLength int64
}

// Prober performs the network half of detection.
type Prober interface {
	Head(ctx context.Context, url string) (Meta, error)
	// FetchPrefix returns at most n leading bytes of the resource.
	FetchPrefix(ctx context.Context, url string, n int) ([]byte, error)
}

// Hasher digests a byte prefix into a lowercase hex string.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Verdict sources, reported to metrics.
const (
	SourceEmpty        = "empty"
	SourceHint         = "hint"
	SourceURLCache     = "url_cache"
	SourceSigCache     = "sig_cache"
	SourceNoSignatures = "no_signatures"
	SourceFetchFailed  = "fetch_failed"
	SourceSignature    = "signature"
)

// Detector classifies media URLs. It is synchronous and single-threaded.
type Detector struct {
	store       *Store
	prober      Prober
	hasher      Hasher
	logger      *zap.Logger
	learn       bool
	prefixBytes int
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLearning makes classification bypass the caches and record the
// signature of every hint-matched URL.
func WithLearning(learn bool) Option {
	return func(d *Detector) { d.learn = learn }
}

// WithPrefixBytes overrides DefaultPrefixBytes.
func WithPrefixBytes(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.prefixBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector builds a Detector over store.
func NewDetector(store *Store, prober Prober, hasher Hasher, opts ...Option) *Detector {
	if store == nil {
		store = NewStore()
	}
	d := &Detector{
		store:       store,
		prober:      prober,
		hasher:      hasher,
		logger:      zap.NewNop(),
		prefixBytes: DefaultPrefixBytes,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Store returns the backing store.
func (d *Detector) Store() *Store { return d.store }

// IsPlaceholder classifies raw. An empty URL counts as a placeholder. Network
// failures classify as a real image.
func (d *Detector) IsPlaceholder(ctx context.Context, raw string) bool {
	url := mediaurl.UpgradeHTTPS(raw)
	if url == "" {
		metrics.ObservePlaceholderVerdict(SourceEmpty, true)
		return true
	}

	if mediaurl.HasPlaceholderHint(url) {
		if d.learn {
			d.learnOne(ctx, url)
		}
		d.store.SetURLVerdict(url, true)
		metrics.ObservePlaceholderVerdict(SourceHint, true)
		return true
	}

	if !d.learn {
		if v, ok := d.store.URLVerdict(url); ok {
			metrics.ObservePlaceholderVerdict(SourceURLCache, v)
			return v
		}
	}

	sigKey := ""
	if meta, ok := d.head(ctx, url); ok && meta.ETag != "" && meta.ContentLength >= 0 {
		sigKey = meta.ETag + "|" + strconv.FormatInt(meta.ContentLength, 10)
		if v, hit := d.store.SigVerdict(sigKey); hit && !d.learn {
			d.store.SetURLVerdict(url, v)
			metrics.ObservePlaceholderVerdict(SourceSigCache, v)
			return v
		}
	}

	if !d.store.HasSignatures() {
		d.remember(url, sigKey, false)
		metrics.ObservePlaceholderVerdict(SourceNoSignatures, false)
		return false
	}

	hash, ok := d.signature(ctx, url)
	if !ok {
		d.remember(url, sigKey, false)
		metrics.ObservePlaceholderVerdict(SourceFetchFailed, false)
		return false
	}
	verdict := d.store.Matches(hash)
	d.remember(url, sigKey, verdict)
	metrics.ObservePlaceholderVerdict(SourceSignature, verdict)
	return verdict
}

// Learn records signatures for known placeholder URLs and returns how many
// new prefix hashes were added.
func (d *Detector) Learn(ctx context.Context, urls []string) int {
	learned := 0
	for _, raw := range urls {
		url := mediaurl.UpgradeHTTPS(raw)
		if url == "" {
			continue
		}
		hash, ok := d.signature(ctx, url)
		if !ok {
			continue
		}
		if d.store.AddHash(hash) {
			learned++
		}
		if meta, ok := d.head(ctx, url); ok {
			d.store.AddLength(meta.ContentLength)
		}
		d.store.SetURLVerdict(url, true)
	}
	d.logger.Info("placeholder signatures learned",
		zap.Int("learned", learned),
		zap.Int("total", len(d.store.hashes)),
	)
	return learned
}

func (d *Detector) learnOne(ctx context.Context, url string) {
	if hash, ok := d.signature(ctx, url); ok {
		d.store.AddHash(hash)
	}
	if meta, ok := d.head(ctx, url); ok {
		d.store.AddLength(meta.ContentLength)
	}
}

func (d *Detector) remember(url, sigKey string, verdict bool) {
	d.store.SetURLVerdict(url, verdict)
	if sigKey != "" {
		d.store.SetSigVerdict(sigKey, verdict)
	}
}

func (d *Detector) head(ctx context.Context, url string) (Meta, bool) {
	if d.prober == nil {
		return Meta{}, false
	}
	meta, err := d.prober.Head(ctx, url)
	if err != nil {
		d.logger.Debug("placeholder head failed", zap.String("url", url), zap.Error(err))
		return Meta{}, false
	}
	meta.ETag = strings.Trim(strings.TrimSpace(meta.ETag), `"`)
	return meta, true
}

func (d *Detector) signature(ctx context.Context, url string) (string, bool) {
	if d.prober == nil || d.hasher == nil {
		return "", false
	}
	prefix, err := d.prober.FetchPrefix(ctx, url, d.prefixBytes)
	if err != nil {
		d.logger.Warn("placeholder prefix fetch failed", zap.String("url", url), zap.Error(err))
		return "", false
	}
	if len(prefix) == 0 {
		return "", false
	}
	if len(prefix) > d.prefixBytes {
		prefix = prefix[:d.prefixBytes]
	}
	hash, err := d.hasher.Hash(prefix)
	if err != nil {
		d.logger.Warn("placeholder prefix hash failed", zap.String("url", url), zap.Error(err))
		return "", false
	}
	return strings.ToLower(hash), true
}
