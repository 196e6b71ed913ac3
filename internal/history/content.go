package history

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripTags  = bluemonday.StrictPolicy()
	lineBreaks = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/div|/tr|/li)>`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// EmailToContent picks the best available body text: plain text, then text
// extracted from HTML, then the snippet.
func EmailToContent(textPlain, textHTML, snippet string) string {
	if s := strings.TrimSpace(textPlain); s != "" {
		return s
	}
	if s := htmlToText(textHTML); s != "" {
		return s
	}
	return strings.TrimSpace(snippet)
}

// htmlToText strips markup while keeping rough paragraph structure.
func htmlToText(in string) string {
	if in == "" {
		return ""
	}
	withBreaks := lineBreaks.ReplaceAllString(in, "\n")
	text := stripTags.Sanitize(withBreaks)
	text = html.UnescapeString(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
