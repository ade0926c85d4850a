package facet

import (
	"regexp"
	"strings"
)

const maxSlugRunes = 120

var (
	slugReplacer = strings.NewReplacer(
		`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
		`"`, "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Slug turns a facet value into a single path segment. Characters that are
// unsafe in file names become underscores, runs of underscores collapse and
// the result is capped at 120 runes. Blank values map to "unknown". Leading
// dots become an underscore, so "." and ".." never name a parent directory.
func Slug(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return "unknown"
	}
	s = slugReplacer.Replace(s)
	if trimmed := strings.TrimLeft(s, "."); trimmed != s {
		s = "_" + trimmed
	}
	s = underscoreRun.ReplaceAllString(s, "_")
	if r := []rune(s); len(r) > maxSlugRunes {
		s = string(r[:maxSlugRunes])
	}
	return s
}

// Path is the relative path of the page listing value's records.
func Path(kind Kind, value string) string {
	return string(kind) + "/" + Slug(value) + "/"
}
