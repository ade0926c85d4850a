package searchindex

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/review-catalog/internal/catalog"
)

var errEntryShape = errors.New("search entry must be a 13 element array")

// Entry is the search projection of one record. It is encoded as a
// positional JSON array to keep shards small:
//
//	[id, title, date, hero, path, tags, people, maker, series,
//	 has_images(0/1), image_count, has_video(0/1), rank|null]
type Entry struct {
	ID         string
	Title      string
	Date       string
	Hero       string
	Path       string
	Tags       []string
	People     []string
	Maker      string
	Series     string
	HasImages  bool
	ImageCount int
	HasVideo   bool
	Rank       *int
}

// Project builds the entry for r.
func Project(r *catalog.Record) Entry {
	return Entry{
		ID:         r.ID,
		Title:      r.Title,
		Date:       r.ReleaseDate,
		Hero:       r.HeroImage,
		Path:       r.Path(),
		Tags:       nonNil(r.Tags),
		People:     nonNil(r.People),
		Maker:      r.Maker,
		Series:     r.Series,
		HasImages:  r.HasImages,
		ImageCount: r.ImageCount,
		HasVideo:   r.HasVideo,
		Rank:       r.Rank,
	}
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		e.ID, e.Title, e.Date, e.Hero, e.Path,
		nonNil(e.Tags), nonNil(e.People),
		e.Maker, e.Series,
		flag(e.HasImages), e.ImageCount, flag(e.HasVideo),
		e.Rank,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 13 {
		return fmt.Errorf("%w: got %d", errEntryShape, len(parts))
	}
	var hasImages, hasVideo int
	var out Entry
	targets := []any{
		&out.ID, &out.Title, &out.Date, &out.Hero, &out.Path,
		&out.Tags, &out.People, &out.Maker, &out.Series,
		&hasImages, &out.ImageCount, &hasVideo, &out.Rank,
	}
	for i, target := range targets {
		if err := json.Unmarshal(parts[i], target); err != nil {
			return fmt.Errorf("search entry field %d: %w", i, err)
		}
	}
	out.Tags = nonNil(out.Tags)
	out.People = nonNil(out.People)
	out.HasImages = hasImages != 0
	out.HasVideo = hasVideo != 0
	*e = out
	return nil
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
