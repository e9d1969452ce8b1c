// Package placeholder converts raw {{ expr }} substitution tokens to and
// from the decorated representation shown inside the rich-text editor. The
// decoration is a marker-class span so the widget renders tokens as
// highlighted chips instead of free text that edits could corrupt.
package placeholder

import (
	"regexp"
	"strings"
)

// MarkerClass is the CSS class carried by decorated placeholder spans. Only
// spans with this class are decoded back to raw tokens.
const MarkerClass = "placeholder-variable"

var (
	tokenRe = regexp.MustCompile(`\{\{([^}]*)\}\}`)
	spanRe  = regexp.MustCompile(`(?i)<span\b[^>]*class="` + MarkerClass + `"[^>]*>\$\{\{([^}]*)\}\}</span>`)
)

// ToEditable replaces every {{ expr }} token in raw with a decorated span
// whose text is ${{ expr }}. The run between the braces is carried over
// byte-for-byte, whitespace included, so ToRaw can reproduce the original
// token exactly.
func ToEditable(raw string) string {
	return tokenRe.ReplaceAllStringFunc(raw, func(tok string) string {
		inner := tok[2 : len(tok)-2]
		return `<span class="` + MarkerClass + `">${{` + inner + `}}</span>`
	})
}

// ToRaw is the inverse of ToEditable. It matches only spans carrying
// MarkerClass; any other span, and any stray ${{...}} text outside a marker
// span, is left untouched.
func ToRaw(decorated string) string {
	return spanRe.ReplaceAllStringFunc(decorated, func(m string) string {
		sub := spanRe.FindStringSubmatch(m)
		return "{{" + sub[1] + "}}"
	})
}

// Exprs returns the trimmed expression of every placeholder token in raw, in
// document order. Duplicates are kept.
func Exprs(raw string) []string {
	var out []string
	for _, m := range tokenRe.FindAllStringSubmatch(raw, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}
