// Package catalog defines the canonical content record and the normalizer
// that turns loosely-typed source rows into it.
package catalog

import (
	"fmt"
	"strings"
	"time"
)

// VideoSize is the pixel size of the sample video, when the source knows it.
type VideoSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Record is one catalog item after normalization. Build it with Normalize;
// the derived fields are only trustworthy on values Normalize returned.
type Record struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ReleaseDate string `json:"release_date"`
	Maker       string `json:"maker"`
	Series      string `json:"series"`
	Label       string `json:"label"`
	OfficialURL string `json:"official_url,omitempty"`

	Tags   []string `json:"tags"`
	People []string `json:"people"`

	HeroImage           string            `json:"hero_image,omitempty"`
	SampleImagesSmall   []string          `json:"sample_images_small,omitempty"`
	SampleImagesLarge   []string          `json:"sample_images_large,omitempty"`
	SampleVideo         string            `json:"sample_video,omitempty"`
	SampleVideoVariants map[string]string `json:"sample_video_variants,omitempty"`
	SampleVideoSize     *VideoSize        `json:"sample_video_size,omitempty"`

	Rank          *int     `json:"rank,omitempty"`
	ReviewCount   *int     `json:"review_count,omitempty"`
	ReviewAverage *float64 `json:"review_average,omitempty"`
	PriceMin      *int     `json:"price_min,omitempty"`

	HasImages  bool      `json:"-"`
	ImageCount int       `json:"-"`
	HasVideo   bool      `json:"-"`
	ParsedDate time.Time `json:"-"`
	HasDate    bool      `json:"-"`
}

// Path is the canonical relative path of the record's detail page.
func (r *Record) Path() string {
	return RecordPath(r.ID)
}

// ValidID reports whether id can name a detail page: non-empty, a single
// path segment and not a dot segment.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// RecordPath builds the detail page path for id.
func RecordPath(id string) string {
	return "records/" + id + "/"
}

// HasRating reports whether the record carries a review average.
func (r *Record) HasRating() bool {
	return r.ReviewAverage != nil
}

// ReleaseUnix returns the release timestamp, or 0 when the date is unknown.
func (r *Record) ReleaseUnix() int64 {
	if !r.HasDate {
		return 0
	}
	return r.ParsedDate.Unix()
}

// LightboxImages lists the hero image followed by the best sample set,
// without repeats.
func (r *Record) LightboxImages() []string {
	samples := r.SampleImagesLarge
	if len(samples) == 0 {
		samples = r.SampleImagesSmall
	}
	out := make([]string, 0, len(samples)+1)
	seen := make(map[string]struct{}, len(samples)+1)
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	add(r.HeroImage)
	for _, u := range samples {
		add(u)
	}
	return out
}

// GridImages prefers thumbnails and falls back to the large set.
func (r *Record) GridImages() []string {
	if len(r.SampleImagesSmall) > 0 {
		return r.SampleImagesSmall
	}
	return r.SampleImagesLarge
}

// VideoAspectRatio returns a CSS aspect-ratio value for the sample video.
func (r *Record) VideoAspectRatio() string {
	if r.SampleVideoSize != nil && r.SampleVideoSize.W > 0 && r.SampleVideoSize.H > 0 {
		return fmt.Sprintf("%d / %d", r.SampleVideoSize.W, r.SampleVideoSize.H)
	}
	if m := videoSizePattern.FindStringSubmatch(r.SampleVideo); m != nil {
		return m[1] + " / " + m[2]
	}
	return "16 / 9"
}

// Fields renders the record back into the loose map shape Normalize accepts.
// Derived fields are omitted; Normalize recomputes them.
func (r *Record) Fields() map[string]any {
	out := map[string]any{
		"id":           r.ID,
		"title":        r.Title,
		"description":  r.Description,
		"release_date": r.ReleaseDate,
		"maker":        r.Maker,
		"series":       r.Series,
		"label":        r.Label,
		"tags":         toAnyList(r.Tags),
		"people":       toAnyList(r.People),
	}
	if r.OfficialURL != "" {
		out["official_url"] = r.OfficialURL
	}
	if r.HeroImage != "" {
		out["hero_image"] = r.HeroImage
	}
	if len(r.SampleImagesSmall) > 0 {
		out["sample_images_small"] = toAnyList(r.SampleImagesSmall)
	}
	if len(r.SampleImagesLarge) > 0 {
		out["sample_images_large"] = toAnyList(r.SampleImagesLarge)
	}
	if r.SampleVideo != "" {
		out["sample_video"] = r.SampleVideo
	}
	if len(r.SampleVideoVariants) > 0 {
		variants := make(map[string]any, len(r.SampleVideoVariants))
		for k, v := range r.SampleVideoVariants {
			variants[k] = v
		}
		out["sample_video_variants"] = variants
	}
	if r.SampleVideoSize != nil {
		out["sample_video_size"] = map[string]any{"w": r.SampleVideoSize.W, "h": r.SampleVideoSize.H}
	}
	if r.Rank != nil {
		out["rank"] = *r.Rank
	}
	if r.ReviewCount != nil {
		out["review_count"] = *r.ReviewCount
	}
	if r.ReviewAverage != nil {
		out["review_average"] = *r.ReviewAverage
	}
	if r.PriceMin != nil {
		out["price_min"] = *r.PriceMin
	}
	return out
}

func toAnyList(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
