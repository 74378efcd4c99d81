package speech

import (
	"regexp"
	"strings"
)

// Section and discussion bodies arrive as markdown. Synthesis providers read
// markup aloud literally, so everything but plain prose is stripped before a
// request goes out.
var (
	boldRe     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe   = regexp.MustCompile(`\*(.*?)\*`)
	codeRe     = regexp.MustCompile("`(.*?)`")
	headerRe   = regexp.MustCompile(`#{1,6}\s`)
	linkRe     = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	paraRe     = regexp.MustCompile(`\n{2,}`)
	spaceRe    = regexp.MustCompile(`\s{2,}`)
	specialsRe = regexp.MustCompile(`[^\w\s.,!?;:'"()-]`)
)

// CleanText reduces markdown to prose suitable for speech synthesis.
func CleanText(text string) string {
	s := boldRe.ReplaceAllString(text, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	s = codeRe.ReplaceAllString(s, "$1")
	s = headerRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllString(s, "$1")
	s = paraRe.ReplaceAllString(s, ". ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = specialsRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
