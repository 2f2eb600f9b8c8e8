package mimetext

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLToText strips markup and returns the visible text, one space between text nodes.
// Script, style and head contents are dropped.
func HTMLToText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))

	var parts []string
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; keep what was read
			return strings.Join(parts, " ")
		case html.StartTagToken:
			if hidden(z) {
				skip++
			}
		case html.EndTagToken:
			if hidden(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if text := strings.Join(strings.Fields(string(z.Text())), " "); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func hidden(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "head", "noscript", "template":
		return true
	}
	return false
}
