package generator

import (
	"bytes"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// PostProcess turns raw model output into a plain-text reply no longer than
// c.MaxLength runes. Models sometimes answer in markdown; it is rendered and
// flattened rather than stripped with regexps.
func PostProcess(raw string, c Constraints) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", errors.New("model returned empty text")
	}

	plain, err := markdownToText(text)
	if err != nil {
		return "", err
	}
	plain = strings.Join(strings.Fields(plain), " ")
	if c.MaxLength > 0 {
		plain = strings.TrimSpace(truncate(plain, c.MaxLength))
	}
	if plain == "" {
		return "", errors.New("model returned no usable text")
	}
	return plain, nil
}

func markdownToText(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	doc, err := html.Parse(&buf)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString(" ")
		}
	}
	walk(doc)
	return sb.String(), nil
}

var blockElements = map[string]bool{
	"p": true, "li": true, "br": true, "pre": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}
