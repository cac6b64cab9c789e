package util

import (
	"regexp"
	"strings"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript|head)\b.*?</(script|style|noscript|head)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
)

// HTMLToText strips markup from an HTML document and returns readable text.
// Block-level tags become newlines so paragraph structure survives.
func HTMLToText(html string) string {
	s := scriptRe.ReplaceAllString(html, "")

	// Preserve breaks for the common block elements before stripping tags.
	for _, tag := range []string{"</p>", "</div>", "</li>", "</tr>", "</h1>", "</h2>", "</h3>", "</h4>", "<br>", "<br/>", "<br />"} {
		s = strings.ReplaceAll(s, tag, tag+"\n")
	}

	s = tagRe.ReplaceAllString(s, " ")
	s = unescapeEntities(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func unescapeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&apos;", "'",
	)
	return replacer.Replace(s)
}

// Truncate cuts s to at most max bytes, appending an ellipsis marker when
// anything was dropped. max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	// Do not split a UTF-8 sequence.
	for len(cut) > 0 && cut[len(cut)-1]&0xc0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut + "\n[truncated]"
}
