// Package threatcount derives the number of threats an AI-generated analysis contains.
package threatcount

import (
	"regexp"
	"strings"
)

var (
	// "## Threat: Spoofing", "### Threat 3: Token replay"
	threatHeading = regexp.MustCompile(`(?mi)^#{2,4}[ \t]*Threat\b[^\n:]*:`)
	// any level-two heading, captured without trailing closing hashes
	genericHeading = regexp.MustCompile(`(?m)^##[ \t]+(.+?)[ \t#]*$`)
	numbering      = regexp.MustCompile(`^[0-9]+[.)][ \t]*`)
)

// headings that structure a report without describing a threat
var nonThreatSections = map[string]struct{}{
	"summary":               {},
	"executive summary":     {},
	"overview":              {},
	"introduction":          {},
	"background":            {},
	"scope":                 {},
	"assumptions":           {},
	"methodology":           {},
	"analysis":              {},
	"risk assessment":       {},
	"mitigations":           {},
	"mitigation strategies": {},
	"recommendations":       {},
	"next steps":            {},
	"conclusion":            {},
	"conclusions":           {},
	"references":            {},
	"appendix":              {},
}

// Count returns the number of "Threat:" headings in text. When there are none it falls
// back to counting level-two headings that are not in the structural denylist.
func Count(text string) int {
	if n := len(threatHeading.FindAllStringIndex(text, -1)); n > 0 {
		return n
	}

	n := 0
	for _, m := range genericHeading.FindAllStringSubmatch(text, -1) {
		if !isStructural(m[1]) {
			n++
		}
	}
	return n
}

func isStructural(heading string) bool {
	h := numbering.ReplaceAllString(strings.TrimSpace(heading), "")
	h = strings.ToLower(strings.TrimRight(h, " \t:"))
	_, ok := nonThreatSections[h]
	return ok
}
