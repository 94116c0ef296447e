package forum

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	minCommentRunes      = 5
	minLooseCommentRunes = 10
)

var (
	opClassPattern      = regexp.MustCompile(`(?i)post|content|markdown`)
	looseCommentPattern = regexp.MustCompile(`(?i)comment|reply|post`)
	csrfMetaPattern     = regexp.MustCompile(`(?i)csrf`)
	csrfInputPattern    = regexp.MustCompile(`(?i)csrf|token`)
	memberIDPattern     = regexp.MustCompile(`/space/(\d+)`)
	trailingIDPattern   = regexp.MustCompile(`(\d+)/?(?:[?#].*)?$`)
)

// ExtractContext parses a thread page. It never fails: anything it cannot
// find comes back empty. selfID is the session's member id, empty if unknown.
func ExtractContext(page, selfID string, sampleSize int) ThreadContext {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ThreadContext{}
	}
	comments, hasCommented := extractComments(doc, selfID, sampleSize)
	return ThreadContext{
		Title:        extractTitle(doc),
		OPSummary:    extractOPSummary(doc),
		Comments:     comments,
		CSRF:         extractCSRF(doc),
		HasCommented: hasCommented,
	}
}

func extractTitle(doc *goquery.Document) string {
	return nodeText(doc.Find("title").First(), "")
}

func extractOPSummary(doc *goquery.Document) string {
	if text := nodeText(doc.Find("div.nsk-post article.post-content").First(), " "); text != "" {
		return text
	}
	div := doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return opClassPattern.MatchString(s.AttrOr("class", ""))
	}).First()
	if text := nodeText(div, " "); text != "" {
		return text
	}
	return nodeText(doc.Find("article").First(), " ")
}

func extractComments(doc *goquery.Document, selfID string, sampleSize int) ([]string, bool) {
	items := doc.Find(".comment-container .content-item")
	if items.Length() == 0 {
		return looseComments(doc, sampleSize), false
	}

	var comments []string
	hasCommented := false
	items.Each(func(_ int, item *goquery.Selection) {
		author := item.Find("a.author-name").First()
		if author.Length() == 0 {
			return
		}
		if selfID != "" && authorID(author.AttrOr("href", "")) == selfID {
			hasCommented = true
			return
		}
		if len(comments) >= sampleSize {
			return
		}
		text := nodeText(item.Find("article.post-content").First(), "")
		if utf8.RuneCountInString(text) >= minCommentRunes {
			comments = append(comments, text)
		}
	})
	return comments, hasCommented
}

// looseComments 拿不到作者信息，因此要求更长的文本，避免把导航、页脚混进样本。
func looseComments(doc *goquery.Document, sampleSize int) []string {
	var comments []string
	doc.Find("div, li, article").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if len(comments) >= sampleSize {
			return false
		}
		if !looseCommentPattern.MatchString(el.AttrOr("class", "")) {
			return true
		}
		text := nodeText(el, " ")
		if utf8.RuneCountInString(text) >= minLooseCommentRunes {
			comments = append(comments, text)
		}
		return true
	})
	return comments
}

// extractCSRF reads the first csrf-named meta tag, then the first
// token-named hidden input. Only the first match of each is consulted.
func extractCSRF(doc *goquery.Document) string {
	if token := firstNamed(doc.Find("meta[name]"), csrfMetaPattern).AttrOr("content", ""); strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(firstNamed(doc.Find(`input[type="hidden"][name]`), csrfInputPattern).AttrOr("value", ""))
}

func firstNamed(sel *goquery.Selection, pattern *regexp.Regexp) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return pattern.MatchString(s.AttrOr("name", ""))
	}).First()
}

// ExtractThreadList collects thread links from a listing page. Relative links
// are resolved against base. Threads are unique by id, first link wins.
func ExtractThreadList(page, base string) []ThreadRef {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = &url.URL{}
	}

	var refs []ThreadRef
	seen := make(map[int64]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		id, ok := ParseThreadID(href)
		if !ok || seen[id] {
			return
		}
		title := nodeText(a, "")
		if title == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		seen[id] = true
		refs = append(refs, ThreadRef{Title: title, URL: baseURL.ResolveReference(ref).String(), ID: id})
	})
	return refs
}

// authorID 从作者主页链接中取出 member id。
func authorID(href string) string {
	if m := memberIDPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	if m := trailingIDPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return ""
}

// nodeText joins the trimmed text nodes below the selection with sep,
// skipping scripts and styles.
func nodeText(sel *goquery.Selection, sep string) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}
