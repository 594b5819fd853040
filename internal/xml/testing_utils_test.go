package xml

import (
	"regexp"
	"strings"
)

var (
	xmlDeclRe     = regexp.MustCompile(`<\?xml[^>]*\?>`)
	betweenTagsRe = regexp.MustCompile(`>\s+<`)
	spaceRe       = regexp.MustCompile(`\s+`)
	selfCloseRe   = regexp.MustCompile(`\s+/>`)
)

// normalizeXML removes whitespace differences and the XML declaration for test comparisons
func normalizeXML(s string) string {
	s = xmlDeclRe.ReplaceAllString(s, "")
	s = betweenTagsRe.ReplaceAllString(s, "><")
	s = spaceRe.ReplaceAllString(s, " ")
	s = betweenTagsRe.ReplaceAllString(s, "><")
	s = selfCloseRe.ReplaceAllString(s, "/>")
	return strings.TrimSpace(strings.ToLower(s))
}
