package catalog

// Normalize coerces one loosely-typed source row into a Record. It never
// fails on malformed fields; ok is false only when the row has no usable id
// (see ValidID), in which case the row must be excluded from the build.
//
// Normalize is idempotent: Normalize(r.Fields()) reproduces r.
func Normalize(raw map[string]any) (Record, bool) {
	if raw == nil {
		return Record{}, false
	}
	r := Record{
		ID:          text(raw["id"]),
		Title:       text(raw["title"]),
		ReleaseDate: text(raw["release_date"]),
		Maker:       ResolveName(raw["maker"]),
		Series:      ResolveName(raw["series"]),
		Label:       ResolveName(raw["label"]),
		OfficialURL: urlField(first(raw, "official_url", "affiliate_url", "affiliateURL", "URL", "url")),
		Tags:        stringList(raw["tags"]),
		People:      stringList(first(raw, "people", "actresses")),
		HeroImage:   urlField(raw["hero_image"]),

		SampleImagesSmall:   imageList(raw["sample_images_small"]),
		SampleImagesLarge:   imageList(raw["sample_images_large"]),
		SampleVideo:         urlField(first(raw, "sample_video", "sample_movie")),
		SampleVideoVariants: videoVariants(first(raw, "sample_video_variants", "sample_movie_urls")),
		SampleVideoSize:     videoSize(first(raw, "sample_video_size", "sample_movie_size")),

		Rank:          optInt(first(raw, "rank", "api_rank")),
		ReviewCount:   optInt(firstNonNil(raw["review_count"], nested(raw, "review", "count"))),
		ReviewAverage: optFloat(firstNonNil(raw["review_average"], nested(raw, "review", "average"))),
		PriceMin:      optInt(raw["price_min"]),
	}
	if !ValidID(r.ID) {
		return Record{}, false
	}
	r.Description = text(raw["description"])
	if r.Description == "" {
		r.Description = r.Title
	}
	r.derive()
	return r, true
}

// NormalizeAll normalizes rows in order and reports how many were dropped
// for lacking an id. Later duplicates of an id are dropped too.
func NormalizeAll(rows []map[string]any) ([]*Record, int) {
	out := make([]*Record, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	dropped := 0
	for _, row := range rows {
		rec, ok := Normalize(row)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			dropped++
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, &rec)
	}
	return out, dropped
}

func (r *Record) derive() {
	r.HasImages = len(r.SampleImagesLarge) > 0 || len(r.SampleImagesSmall) > 0
	r.ImageCount = len(r.SampleImagesLarge)
	if r.ImageCount == 0 {
		r.ImageCount = len(r.SampleImagesSmall)
	}
	r.HasVideo = r.SampleVideo != ""
	r.ParsedDate, r.HasDate = ParseReleaseDate(r.ReleaseDate)
}

func firstNonNil(vs ...any) any {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}
