// Package placeholder recognizes "now printing" style stand-in images by URL
// hints and by a SHA-256 signature of their first bytes, and scrubs them from
// source rows.
package placeholder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Seed signature of the upstream placeholder image, present in every loaded
// store so detection works before any learning pass.
const (
	SeedContentLength = 19378
	SeedPrefixHash    = "60b0c00c1f599fe3eb1d21c5f5ac1117117aca68ae65ca838ec35a4806601839"
)

const (
	fileVersion   = 1
	signatureNote = "prefix8_sha256 = SHA-256 of first 8KB (Range) for placeholder images"
)

type signatureFile struct {
	Version        int      `json:"version"`
	ContentLengths []int64  `json:"content_lengths"`
	PrefixHashes   []string `json:"prefix8_sha256"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
	Note           string   `json:"note,omitempty"`
}

type cacheFile struct {
	Version   int             `json:"version"`
	UpdatedAt string          `json:"updated_at,omitempty"`
	URL       map[string]bool `json:"url"`
	Sig       map[string]bool `json:"sig"`
}

// Store holds the signature set and the detection cache. It is loaded once
// per process and saved once at the end; it is not safe for concurrent use.
type Store struct {
	sigPath   string
	cachePath string

	lengths map[int64]struct{}
	hashes  map[string]struct{}
	urls    map[string]bool
	sigs    map[string]bool
}

// NewStore returns an empty in-memory store with no signatures.
func NewStore() *Store {
	return &Store{
		lengths: map[int64]struct{}{},
		hashes:  map[string]struct{}{},
		urls:    map[string]bool{},
		sigs:    map[string]bool{},
	}
}

// Load reads the signature and cache files. Missing or malformed files are
// logged and treated as empty. The seed signature is always added.
func Load(sigPath, cachePath string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := NewStore()
	s.sigPath = sigPath
	s.cachePath = cachePath

	var sf signatureFile
	if err := readJSON(sigPath, &sf); err != nil {
		logger.Warn("placeholder signatures unreadable; starting empty", zap.String("path", sigPath), zap.Error(err))
	}
	for _, n := range sf.ContentLengths {
		s.AddLength(n)
	}
	for _, h := range sf.PrefixHashes {
		s.AddHash(h)
	}

	if err := s.loadCache(cachePath); err != nil {
		logger.Warn("placeholder cache unreadable; starting empty", zap.String("path", cachePath), zap.Error(err))
	}

	s.Seed()
	return s
}

// loadCache accepts the current {url, sig} layout and the older flat
// {url: verdict} map.
func (s *Store) loadCache(path string) error {
	var raw map[string]json.RawMessage
	if err := readJSON(path, &raw); err != nil || raw == nil {
		return err
	}
	if _, ok := raw["url"]; ok {
		var cf cacheFile
		if err := readJSON(path, &cf); err == nil {
			for k, v := range cf.URL {
				s.urls[k] = v
			}
			for k, v := range cf.Sig {
				s.sigs[k] = v
			}
			return nil
		}
	}
	for k, v := range raw {
		var verdict bool
		if err := json.Unmarshal(v, &verdict); err != nil {
			continue
		}
		s.urls[k] = verdict
	}
	return nil
}

// Seed adds the shipped default signature.
func (s *Store) Seed() {
	s.AddLength(SeedContentLength)
	s.AddHash(SeedPrefixHash)
}

// HasSignatures reports whether any prefix hash is known.
func (s *Store) HasSignatures() bool { return len(s.hashes) > 0 }

// Matches reports whether hash is a known placeholder prefix hash.
func (s *Store) Matches(hash string) bool {
	_, ok := s.hashes[strings.ToLower(strings.TrimSpace(hash))]
	return ok
}

// AddHash records a prefix hash and reports whether it was new.
func (s *Store) AddHash(hash string) bool {
	h := strings.ToLower(strings.TrimSpace(hash))
	if h == "" {
		return false
	}
	if _, ok := s.hashes[h]; ok {
		return false
	}
	s.hashes[h] = struct{}{}
	return true
}

// AddLength records a placeholder content length. Non-positive values are
// ignored.
func (s *Store) AddLength(n int64) {
	if n > 0 {
		s.lengths[n] = struct{}{}
	}
}

// URLVerdict returns the cached verdict for url.
func (s *Store) URLVerdict(url string) (verdict, ok bool) {
	verdict, ok = s.urls[url]
	return verdict, ok
}

// SetURLVerdict caches a verdict for url.
func (s *Store) SetURLVerdict(url string, verdict bool) { s.urls[url] = verdict }

// SigVerdict returns the cached verdict for an ETag/length key.
func (s *Store) SigVerdict(key string) (verdict, ok bool) {
	verdict, ok = s.sigs[key]
	return verdict, ok
}

// SetSigVerdict caches a verdict for an ETag/length key.
func (s *Store) SetSigVerdict(key string, verdict bool) { s.sigs[key] = verdict }

// Hashes returns the known prefix hashes, sorted.
func (s *Store) Hashes() []string {
	out := make([]string, 0, len(s.hashes))
	for h := range s.hashes {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Lengths returns the known content lengths, ascending.
func (s *Store) Lengths() []int64 {
	out := make([]int64, 0, len(s.lengths))
	for n := range s.lengths {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CachedURLs returns the number of cached URL verdicts.
func (s *Store) CachedURLs() int { return len(s.urls) }

// Save writes both files. A store built with NewStore has no paths and Save
// is a no-op.
func (s *Store) Save(now time.Time) error {
	stamp := now.UTC().Format(time.RFC3339)
	if s.sigPath != "" {
		sf := signatureFile{
			Version:        fileVersion,
			ContentLengths: s.Lengths(),
			PrefixHashes:   s.Hashes(),
			UpdatedAt:      stamp,
			Note:           signatureNote,
		}
		if err := writeJSON(s.sigPath, sf); err != nil {
			return fmt.Errorf("save signatures: %w", err)
		}
	}
	if s.cachePath != "" {
		cf := cacheFile{Version: fileVersion, UpdatedAt: stamp, URL: s.urls, Sig: s.sigs}
		if err := writeJSON(s.cachePath, cf); err != nil {
			return fmt.Errorf("save cache: %w", err)
		}
	}
	return nil
}

func readJSON(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
