package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		text string
		anns []Annotation
		want string
	}{
		{
			name: "mention",
			text: "hi @bob",
			anns: []Annotation{{Start: 3, End: 7, Href: "https://twitter.com/bob", Label: "@bob"}},
			want: `hi <a href="https://twitter.com/bob">@bob</a>`,
		},
		{
			name: "no annotations",
			text: "plain <b>text</b>",
			want: "plain <b>text</b>",
		},
		{
			name: "duplicate start keeps first",
			text: "#go rocks",
			anns: []Annotation{
				{Start: 0, End: 3, Href: "/first", Label: "#go"},
				{Start: 0, End: 2, Href: "/second", Label: "#g"},
			},
			want: `<a href="/first">#go</a> rocks`,
		},
		{
			name: "input order does not matter",
			text: "@a and @b",
			anns: []Annotation{
				{Start: 0, End: 2, Href: "/a", Label: "@a"},
				{Start: 7, End: 9, Href: "/b", Label: "@b"},
			},
			want: `<a href="/a">@a</a> and <a href="/b">@b</a>`,
		},
		{
			name: "code point offsets",
			text: "😀 @bob!",
			anns: []Annotation{{Start: 2, End: 6, Href: "/bob", Label: "@bob"}},
			want: `😀 <a href="/bob">@bob</a>!`,
		},
		{
			name: "out of range skipped",
			text: "short",
			anns: []Annotation{{Start: 3, End: 10, Href: "/x", Label: "x"}},
			want: "short",
		},
		{
			name: "overlap with applied skipped",
			text: "abcdef",
			anns: []Annotation{
				{Start: 1, End: 4, Href: "/low", Label: "L"},
				{Start: 3, End: 5, Href: "/high", Label: "H"},
			},
			want: `abc<a href="/high">H</a>f`,
		},
		{
			name: "surrounding text untouched",
			text: "a < b @c",
			anns: []Annotation{{Start: 6, End: 8, Href: "/c?x=1&y=2", Label: "@c"}},
			want: `a < b <a href="/c?x=1&amp;y=2">@c</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.text, tt.anns))
		})
	}
}

// TestRenderHTML verifies text around anchors is escaped too.
func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name string
		text string
		anns []Annotation
		want string
	}{
		{
			name: "no annotations",
			text: `<script>alert("x")</script>`,
			want: `&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;`,
		},
		{
			name: "between anchors",
			text: "a < b @c & d",
			anns: []Annotation{{Start: 6, End: 8, Href: "/c", Label: "@c"}},
			want: `a &lt; b <a href="/c">@c</a> &amp; d`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderHTML(tt.text, tt.anns))
		})
	}
}
