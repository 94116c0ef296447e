package forum

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commentItem(memberID, text string) string {
	return fmt.Sprintf(`<li class="content-item">
  <div class="author-info"><a class="author-name" href="/space/%s">user%s</a></div>
  <article class="post-content"><p>%s</p></article>
</li>`, memberID, memberID, text)
}

func threadPage(items ...string) string {
	return `<html><head><title> VPS review thread </title>
<meta name="csrf-token" content="meta-token">
</head><body>
<div class="nsk-post"><article class="post-content"><p>Bought a new box.</p><p>Specs below.</p></article></div>
<div class="comment-container"><ul>` + strings.Join(items, "\n") + `</ul></div>
</body></html>`
}

func TestExtractContextBasics(t *testing.T) {
	t.Parallel()

	page := threadPage(commentItem("11", "nice price for that region"))
	tc := ExtractContext(page, "", 6)
	assert.Equal(t, "VPS review thread", tc.Title)
	assert.Equal(t, "Bought a new box. Specs below.", tc.OPSummary)
	assert.Equal(t, []string{"nice price for that region"}, tc.Comments)
	assert.Equal(t, "meta-token", tc.CSRF)
	assert.False(t, tc.HasCommented)
}

func TestExtractContextSamplesInDocumentOrder(t *testing.T) {
	t.Parallel()

	var items []string
	for i := 1; i <= 8; i++ {
		items = append(items, commentItem(fmt.Sprint(100+i), fmt.Sprintf("comment number %d", i)))
	}
	// too short to be a sample
	items = append([]string{commentItem("99", "+1")}, items...)

	tc := ExtractContext(threadPage(items...), "", 3)
	assert.Equal(t, []string{"comment number 1", "comment number 2", "comment number 3"}, tc.Comments)
}

func TestExtractContextDetectsOwnComment(t *testing.T) {
	t.Parallel()

	positions := []int{0, 2, 5}
	for _, pos := range positions {
		var items []string
		for i := 0; i < 6; i++ {
			if i == pos {
				items = append(items, commentItem("42", "my own earlier reply"))
				continue
			}
			items = append(items, commentItem(fmt.Sprint(200+i), fmt.Sprintf("peer comment %d", i)))
		}
		tc := ExtractContext(threadPage(items...), "42", 2)
		assert.True(t, tc.HasCommented, "own comment at position %d", pos)
		assert.Len(t, tc.Comments, 2)
		assert.NotContains(t, tc.Comments, "my own earlier reply")
	}
}

func TestExtractContextSelfMatchIsExact(t *testing.T) {
	t.Parallel()

	tc := ExtractContext(threadPage(commentItem("420", "someone else entirely")), "42", 6)
	assert.False(t, tc.HasCommented)
	assert.Equal(t, []string{"someone else entirely"}, tc.Comments)
}

func TestExtractContextLooseFallback(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>t</title></head><body>
<div class="reply-box">short</div>
<div class="reply-box">this reply is long enough</div>
<li class="Comment">another sufficiently long one</li>
<div class="sidebar">not a comment at all, ignored</div>
</body></html>`
	tc := ExtractContext(page, "1", 6)
	assert.Equal(t, []string{"this reply is long enough", "another sufficiently long one"}, tc.Comments)
	assert.False(t, tc.HasCommented)
}

func TestExtractContextOPFallbacks(t *testing.T) {
	t.Parallel()

	tc := ExtractContext(`<html><body><div class="Markdown-Body">fallback body</div></body></html>`, "", 1)
	assert.Equal(t, "fallback body", tc.OPSummary)

	tc = ExtractContext(`<html><body><article>bare article</article></body></html>`, "", 1)
	assert.Equal(t, "bare article", tc.OPSummary)
}

func TestExtractContextNeverFails(t *testing.T) {
	t.Parallel()

	for _, page := range []string{"", "<<<not html", "<html><body><p>nothing</p></body></html>"} {
		tc := ExtractContext(page, "7", 6)
		assert.Empty(t, tc.Title)
		assert.Empty(t, tc.Comments)
		assert.Empty(t, tc.CSRF)
		assert.False(t, tc.HasCommented)
	}
}

func TestExtractCSRFFromHiddenInput(t *testing.T) {
	t.Parallel()

	page := `<html><head><meta name="description" content="x"></head><body>
<form><input type="hidden" name="_Token" value="input-token"></form></body></html>`
	assert.Equal(t, "input-token", ExtractContext(page, "", 1).CSRF)
}

func TestExtractCSRFUsesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, head, body, want string
	}{
		{
			name: "first meta wins",
			head: `<meta name="csrf-token" content="first"><meta name="x-csrf" content="second">`,
			want: "first",
		},
		{
			name: "empty first meta falls through to input",
			head: `<meta name="csrf-token" content=""><meta name="x-csrf" content="later-meta">`,
			body: `<input type="hidden" name="csrf" value="from-input">`,
			want: "from-input",
		},
		{
			name: "visible inputs are ignored",
			body: `<input type="text" name="token" value="typed"><input type="hidden" name="csrf" value="hidden">`,
			want: "hidden",
		},
		{
			name: "empty first hidden input is not skipped",
			body: `<input type="hidden" name="csrf" value=""><input type="hidden" name="token" value="later">`,
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := "<html><head>" + tc.head + "</head><body><form>" + tc.body + "</form></body></html>"
			assert.Equal(t, tc.want, ExtractContext(page, "", 1).CSRF)
		})
	}
}

func TestExtractThreadList(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<a href="/post-123-1">First thread</a>
<a href="/post-123-2">First thread page 2</a>
<a href="https://www.nodeseek.com/t/456">Second thread</a>
<a href="/post-789-1"><img src="x.png"></a>
<a href="/post-789-1">Third thread</a>
<a href="/space/5">profile</a>
</body></html>`

	refs := ExtractThreadList(page, "https://www.nodeseek.com")
	require.Len(t, refs, 3)
	assert.Equal(t, ThreadRef{Title: "First thread", URL: "https://www.nodeseek.com/post-123-1", ID: 123}, refs[0])
	assert.Equal(t, ThreadRef{Title: "Second thread", URL: "https://www.nodeseek.com/t/456", ID: 456}, refs[1])
	assert.Equal(t, ThreadRef{Title: "Third thread", URL: "https://www.nodeseek.com/post-789-1", ID: 789}, refs[2])
}

func TestParseThreadID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		id   int64
		want bool
	}{
		{"https://www.nodeseek.com/post-456178-1", 456178, true},
		{"/post-12", 12, true},
		{"https://forum.example/t/99", 99, true},
		{"https://forum.example/t/99/reply", 99, true},
		{"https://www.nodeseek.com/categories/review", 0, false},
		{"https://www.nodeseek.com/post-abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		id, ok := ParseThreadID(tt.url)
		assert.Equal(t, tt.want, ok, tt.url)
		assert.Equal(t, tt.id, id, tt.url)
	}
}

func TestCSRFFromCookie(t *testing.T) {
	t.Parallel()

	tok, ok := CSRFFromCookie("session=abc; XSRF-TOKEN=tok123; theme=dark")
	assert.True(t, ok)
	assert.Equal(t, "tok123", tok)

	tok, ok = CSRFFromCookie("a=1; my_csrf=c=s=r=f")
	assert.True(t, ok)
	assert.Equal(t, "c=s=r=f", tok)

	_, ok = CSRFFromCookie("session=abc; theme=dark")
	assert.False(t, ok)

	_, ok = CSRFFromCookie("csrf=; broken")
	assert.False(t, ok)
}
