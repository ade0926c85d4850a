package catalog

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/review-catalog/internal/mediaurl"
)

// text renders scalar input as a trimmed string. Containers and nil become "".
func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// urlField upgrades string input to https. Anything else is rejected.
func urlField(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return mediaurl.UpgradeHTTPS(s)
}

// stringList keeps the non-empty trimmed scalar entries of a list, first
// occurrence wins.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			items = make([]any, len(ss))
			for i, s := range ss {
				items[i] = s
			}
		} else {
			return []string{}
		}
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		s := text(item)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// imageList is stringList plus https upgrade and removal of URLs that name
// a placeholder asset.
func imageList(v any) []string {
	raw := stringList(v)
	out := make([]string, 0, len(raw))
	for _, u := range mediaurl.DedupUpgrade(raw) {
		if mediaurl.HasPlaceholderHint(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// optInt casts best-effort; a failed cast means absent, never zero.
func optInt(v any) *int {
	var n int
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil
			}
			i = int64(f)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = i
	case bool:
		if t {
			n = 1
		}
	default:
		return nil
	}
	return &n
}

func optFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ResolveName collapses the shapes a maker/series/label field arrives in
// (a bare string, a {name: ...} object, or a list of either) into a plain
// string. The first resolvable name wins; nothing resolvable yields "".
func ResolveName(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return ResolveName(t["name"])
	case []any:
		for _, item := range t {
			if name := ResolveName(item); name != "" {
				return name
			}
		}
	case []string:
		for _, item := range t {
			if name := strings.TrimSpace(item); name != "" {
				return name
			}
		}
	}
	return ""
}

func videoVariants(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, raw := range m {
		u := urlField(raw)
		if strings.TrimSpace(k) == "" || u == "" {
			continue
		}
		out[k] = u
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func videoSize(v any) *VideoSize {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	w, h := optInt(m["w"]), optInt(m["h"])
	if w == nil || h == nil || *w <= 0 || *h <= 0 {
		return nil
	}
	return &VideoSize{W: *w, H: *h}
}

// first returns the value of the first key holding something other than
// nil or a blank string.
func first(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v
	}
	return nil
}

func nested(raw map[string]any, outer, inner string) any {
	m, ok := raw[outer].(map[string]any)
	if !ok {
		return nil
	}
	return m[inner]
}
