package utils

import (
	"regexp"
	"strings"
)

var (
	unsafeBlock   = regexp.MustCompile(`(?is)<(script|style|iframe|object|embed)\b[^>]*>.*?</(script|style|iframe|object|embed)\s*>`)
	unsafeTag     = regexp.MustCompile(`(?i)</?(script|style|iframe|object|embed)\b[^>]*>`)
	eventHandler  = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	scriptURL     = regexp.MustCompile(`(?i)(href|src)\s*=\s*("\s*javascript:[^"]*"|'\s*javascript:[^']*'|javascript:[^\s>]+)`)
	externalLink  = regexp.MustCompile(`<a([^>]*\shref="https?://[^"]*"[^>]*)>`)
	lessonClasses = []struct {
		re    *regexp.Regexp
		class string
	}{
		{regexp.MustCompile(`<(h[1-6])((?:\s[^>]*)?)>`), "lesson-heading"},
		{regexp.MustCompile(`<(p)((?:\s[^>]*)?)>`), "lesson-text"},
		{regexp.MustCompile(`<(ul|ol)((?:\s[^>]*)?)>`), "lesson-list"},
		{regexp.MustCompile(`<(blockquote)((?:\s[^>]*)?)>`), "lesson-quote"},
		{regexp.MustCompile(`<(pre|code)((?:\s[^>]*)?)>`), "lesson-code"},
		{regexp.MustCompile(`<(table)((?:\s[^>]*)?)>`), "lesson-table"},
	}
)

// ProcessHTMLContent prepares admin authored lesson HTML for the lesson page.
// Active content is removed, block elements without a class get the lesson
// style and external links open in a new tab.
func ProcessHTMLContent(content string) string {
	out := unsafeBlock.ReplaceAllString(content, "")
	out = unsafeTag.ReplaceAllString(out, "")
	out = eventHandler.ReplaceAllString(out, "")
	out = scriptURL.ReplaceAllString(out, `$1="#"`)

	for _, lc := range lessonClasses {
		class := lc.class
		out = lc.re.ReplaceAllStringFunc(out, func(tag string) string {
			m := lc.re.FindStringSubmatch(tag)
			if strings.Contains(m[2], "class=") {
				return tag
			}
			return "<" + m[1] + m[2] + ` class="` + class + `">`
		})
	}

	return externalLink.ReplaceAllStringFunc(out, func(tag string) string {
		if strings.Contains(tag, "target=") {
			return tag
		}
		return strings.TrimSuffix(tag, ">") + ` target="_blank" rel="noopener noreferrer">`
	})
}
