// Package searchindex compiles the client-side search payload: the record
// projection split into encoded shards plus an encoded manifest that the
// search page embeds.
package searchindex

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/JakeFAU/review-catalog/internal/catalog"
	"github.com/JakeFAU/review-catalog/internal/facet"
)

// Defaults for Config fields left zero.
const (
	DefaultShardSize   = 600
	DefaultPopularTags = 30
	DefaultShardDir    = "_search_shards"
	ManifestVersion    = 3
)

// Clock supplies the manifest generation time.
type Clock interface {
	Now() time.Time
}

// SaltFunc returns the per-build filename salt.
type SaltFunc func() (string, error)

// Config tunes the compiler.
type Config struct {
	ShardSize   int
	PopularTags int
	// ShardDir is relative to the assets directory.
	ShardDir string
}

// ShardRef is a manifest shard entry, encoded as [path, count].
type ShardRef struct {
	Path  string
	Count int
}

// MarshalJSON implements json.Marshaler.
func (s ShardRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{s.Path, s.Count})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *ShardRef) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("shard ref must be a pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Path); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &s.Count)
}

// TagCount is a popular-tag entry, encoded as [tag, count].
type TagCount struct {
	Tag   string
	Count int
}

// MarshalJSON implements json.Marshaler.
func (t TagCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Tag, t.Count})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("tag count must be a pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &t.Tag); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &t.Count)
}

// Manifest describes every shard plus the facet statistics behind the
// search filters. Keys are abbreviated to match the client decoder.
type Manifest struct {
	Version     int        `json:"v"`
	GeneratedAt string     `json:"ga"`
	Total       int        `json:"t"`
	ShardSize   int        `json:"cs"`
	Shards      []ShardRef `json:"c"`
	PopularTags []TagCount `json:"pt"`
	Makers      []string   `json:"mk"`
	Series      []string   `json:"sr"`
}

// Shard is one encoded slice of the projection.
type Shard struct {
	// Path is relative to the output root.
	Path    string
	Count   int
	Payload string
}

// Payload is the compiled search index for one build.
type Payload struct {
	Manifest        Manifest
	EncodedManifest string
	Shards          []Shard
	Salt            string
}

// Compiler turns a record list into a Payload.
type Compiler struct {
	cfg   Config
	codec *Codec
	clock Clock
	salt  SaltFunc
}

// NewCompiler builds a Compiler. A nil salt uses RandomSalt.
func NewCompiler(cfg Config, codec *Codec, clock Clock, salt SaltFunc) *Compiler {
	if cfg.ShardSize <= 0 {
		cfg.ShardSize = DefaultShardSize
	}
	if cfg.PopularTags <= 0 {
		cfg.PopularTags = DefaultPopularTags
	}
	if cfg.ShardDir == "" {
		cfg.ShardDir = DefaultShardDir
	}
	if codec == nil {
		codec = NewCodec("")
	}
	if salt == nil {
		salt = RandomSalt
	}
	return &Compiler{cfg: cfg, codec: codec, clock: clock, salt: salt}
}

// Codec returns the codec shards are encoded with.
func (c *Compiler) Codec() *Codec { return c.codec }

// Compile projects records in their given order. Records without an id are
// skipped.
func (c *Compiler) Compile(records []*catalog.Record) (Payload, error) {
	salt, err := c.salt()
	if err != nil {
		return Payload{}, fmt.Errorf("search salt: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	tagCounts := map[string]int{}
	var tagOrder []string
	makers := map[string]struct{}{}
	series := map[string]struct{}{}
	for _, r := range records {
		if r == nil || r.ID == "" {
			continue
		}
		for _, t := range r.Tags {
			if _, ok := tagCounts[t]; !ok {
				tagOrder = append(tagOrder, t)
			}
			tagCounts[t]++
		}
		if r.Maker != "" {
			makers[r.Maker] = struct{}{}
		}
		if r.Series != "" {
			series[r.Series] = struct{}{}
		}
		entries = append(entries, Project(r))
	}

	manifest := Manifest{
		Version:     ManifestVersion,
		GeneratedAt: c.clock.Now().UTC().Format("2006-01-02T15:04:05Z"),
		Total:       len(entries),
		ShardSize:   c.cfg.ShardSize,
		Shards:      []ShardRef{},
		PopularTags: popular(tagOrder, tagCounts, c.cfg.PopularTags),
		Makers:      sortedKeys(makers),
		Series:      sortedKeys(series),
	}

	var shards []Shard
	for i, start := 0, 0; start < len(entries); i, start = i+1, start+c.cfg.ShardSize {
		end := min(start+c.cfg.ShardSize, len(entries))
		chunk := entries[start:end]
		encoded, err := c.codec.Encode(chunk)
		if err != nil {
			return Payload{}, fmt.Errorf("encode shard %d: %w", i, err)
		}
		ref := path.Join(c.cfg.ShardDir, fmt.Sprintf("wi_%03d_%s.dat", i, salt))
		shards = append(shards, Shard{Path: path.Join("assets", ref), Count: len(chunk), Payload: encoded})
		manifest.Shards = append(manifest.Shards, ShardRef{Path: ref, Count: len(chunk)})
	}

	encoded, err := c.codec.Encode(manifest)
	if err != nil {
		return Payload{}, fmt.Errorf("encode manifest: %w", err)
	}
	return Payload{Manifest: manifest, EncodedManifest: encoded, Shards: shards, Salt: salt}, nil
}

// RandomSalt returns six hex characters from crypto/rand.
func RandomSalt() (string, error) {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// popular returns the n most frequent tags; ties keep first-seen order.
func popular(order []string, counts map[string]int, n int) []TagCount {
	out := make([]TagCount, 0, len(order))
	for _, t := range order {
		out = append(out, TagCount{Tag: t, Count: counts[t]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	// Map order is random; sort plainly first so case-folded ties are stable.
	sort.Strings(out)
	facet.SortFold(out)
	return out
}
