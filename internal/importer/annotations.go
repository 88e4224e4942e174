package importer

import (
	"net/url"

	"github.com/kimhsiao/likevault/internal/models"
	"github.com/kimhsiao/likevault/internal/render"
)

// ProfileBase prefixes account and hashtag links.
const ProfileBase = "https://twitter.com/"

// Annotations builds link annotations for a stored post. Mentions and
// hashtags keep the post's own text as their label.
func Annotations(p *models.Post) []render.Annotation {
	runes := []rune(p.Text)
	label := func(s models.Span) string {
		if s.Start < 0 || s.End > len(runes) || s.Start > s.End {
			return ""
		}
		return string(runes[s.Start:s.End])
	}

	anns := make([]render.Annotation, 0, len(p.Mentions)+len(p.Hashtags)+len(p.Links))
	for _, m := range p.Mentions {
		anns = append(anns, render.Annotation{
			Start: m.Start, End: m.End,
			Href:  ProfileBase + url.PathEscape(m.Username),
			Label: label(m.Span),
		})
	}
	for _, h := range p.Hashtags {
		anns = append(anns, render.Annotation{
			Start: h.Start, End: h.End,
			Href:  ProfileBase + "hashtag/" + url.PathEscape(h.Tag),
			Label: label(h.Span),
		})
	}
	for _, l := range p.Links {
		href := l.ExpandedURL
		if href == "" {
			href = l.URL
		}
		text := l.DisplayURL
		if text == "" {
			text = href
		}
		anns = append(anns, render.Annotation{Start: l.Start, End: l.End, Href: href, Label: text})
	}
	return anns
}

// RenderText returns the post text with its annotations as inline links.
func RenderText(p *models.Post) string {
	return render.Render(p.Text, Annotations(p))
}

// RenderHTML is RenderText with the remaining text HTML-escaped.
func RenderHTML(p *models.Post) string {
	return render.RenderHTML(p.Text, Annotations(p))
}
