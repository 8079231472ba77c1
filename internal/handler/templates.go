package handler

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxPageLinks is how many numbered links the blog pager shows at once.
const maxPageLinks = 7

var titleCaser = cases.Title(language.English)

// TemplateFuncs returns the functions available to every page and partial.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// Arithmetic for pagers
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },

		// Dates
		"year":          func() int { return time.Now().Year() },
		"formatDate":    layoutOrEmpty("Jan 2, 2006"),
		"formatDateISO": layoutOrEmpty("2006-01-02"),
		"timeAgo":       timeAgo,

		// Text
		"hasPrefix": strings.HasPrefix,
		"title":     func(v any) string { return titleCaser.String(fmt.Sprint(v)) },
		"truncate":  truncate,
		"initial":   initial,

		// Logic. eq and ne compare interface values so a missing dict key
		// (nil) can be compared with "" without a template error.
		"ternary": func(cond bool, yes, no any) any {
			if cond {
				return yes
			}
			return no
		},
		"default": func(fallback, v any) any {
			if v == nil || v == "" || v == 0 {
				return fallback
			}
			return v
		},
		"eq": func(a, b any) bool { return a == b },
		"ne": func(a, b any) bool { return a != b },

		// Collections
		"list":      func(items ...any) []any { return items },
		"dict":      dict,
		"pageRange": pageRange,

		// Markup
		"csrfField": func(token string) template.HTML {
			return template.HTML(`<input type="hidden" name="csrf_token" value="` + template.HTMLEscapeString(token) + `">`)
		},
		"twMerge":            func(classes ...string) string { return twmerge.Merge(classes...) },
		"postStatusColor":    badge(postBadges),
		"commentStatusColor": badge(commentBadges),
	}
}

func layoutOrEmpty(layout string) func(time.Time) string {
	return func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	}
}

// timeAgo renders t relative to now, falling back to a date after a month.
func timeAgo(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 48*time.Hour:
		return "yesterday"
	case d < 7*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/(24*7)), "week")
	}
	return t.Format("Jan 2, 2006")
}

// truncate cuts s to n runes, adding an ellipsis when it does.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// initial is the avatar letter for a display name.
func initial(name string) string {
	for _, r := range name {
		return strings.ToUpper(string(r))
	}
	return "?"
}

// dict builds a map from alternating keys and values for partial arguments.
func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
		}
		m[key] = kv[i+1]
	}
	return m, nil
}

// pageRange returns the page numbers to link, a window of at most
// maxPageLinks around current.
func pageRange(current, total int) []int {
	start, end := 1, total
	if total > maxPageLinks {
		start = max(1, current-maxPageLinks/2)
		end = start + maxPageLinks - 1
		if end > total {
			end = total
			start = total - maxPageLinks + 1
		}
	}

	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

var (
	postBadges = map[string]string{
		"published": "bg-green-100 text-green-800",
		"draft":     "bg-yellow-100 text-yellow-800",
	}
	commentBadges = map[string]string{
		"active":  "bg-green-100 text-green-800",
		"flagged": "bg-orange-100 text-orange-800",
		"hidden":  "bg-red-100 text-red-800",
	}
)

// badge maps a status (any string type) to its badge classes.
func badge(classes map[string]string) func(any) string {
	return func(status any) string {
		if c, ok := classes[fmt.Sprint(status)]; ok {
			return c
		}
		return "bg-gray-100 text-gray-600"
	}
}
