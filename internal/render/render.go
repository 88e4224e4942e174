// Package render turns annotated post text into text with inline links.
package render

import (
	"html"
	"sort"
	"strings"
)

// Annotation marks the code-point range [Start, End) of a text as a link.
type Annotation struct {
	Start int
	End   int
	Href  string
	Label string
}

// Anchor returns the inline link markup for a.
func (a Annotation) Anchor() string {
	return `<a href="` + html.EscapeString(a.Href) + `">` + html.EscapeString(a.Label) + `</a>`
}

// Render replaces each annotated range of text with its anchor.
//
// Offsets count code points. Annotations are applied from the highest start
// down so earlier offsets stay valid. When several share a start only the
// first in input order is used. Annotations that fall outside the text or
// overlap one already applied are skipped. Text outside the annotations is
// returned unchanged, so the result is not safe to embed in an HTML page
// when text is untrusted; use RenderHTML for that.
func Render(text string, anns []Annotation) string {
	return render(text, anns, func(s string) string { return s })
}

// RenderHTML is Render with the text outside the annotations HTML-escaped.
func RenderHTML(text string, anns []Annotation) string {
	return render(text, anns, html.EscapeString)
}

func render(text string, anns []Annotation, plain func(string) string) string {
	if len(anns) == 0 {
		return plain(text)
	}
	runes := []rune(text)

	seen := make(map[int]bool, len(anns))
	picked := make([]Annotation, 0, len(anns))
	for _, a := range anns {
		if seen[a.Start] {
			continue
		}
		seen[a.Start] = true
		picked = append(picked, a)
	}
	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Start > picked[j].Start
	})

	var b strings.Builder
	// limit is the lowest start applied so far; anything reaching past it overlaps.
	limit := len(runes)
	tail := make([]string, 0, len(picked)*2)
	for _, a := range picked {
		if a.Start < 0 || a.End < a.Start || a.End > limit {
			continue
		}
		tail = append(tail, plain(string(runes[a.End:limit])), a.Anchor())
		limit = a.Start
	}

	b.WriteString(plain(string(runes[:limit])))
	for i := len(tail) - 1; i >= 0; i-- {
		b.WriteString(tail[i])
	}
	return b.String()
}
