package itemize

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxDescriptionLen caps every rendered description, including the prefix.
	MaxDescriptionLen = 100
	maxShortTitleLen  = 40
	ellipsis          = ".."
)

// Truncate shortens s to at most n runes, ending it with "..".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= len(ellipsis) {
		return ellipsis[:max(n, 0)]
	}
	runes := []rune(s)
	cut := strings.TrimRight(string(runes[:n-len(ellipsis)]), " ,;:-")
	return cut + ellipsis
}

// ItemTitle renders an item line: the cleaned title with a "2x " quantity prefix
// when more than one unit was bought.
func ItemTitle(title string, quantity int) string {
	return Truncate(withQuantity(clean(title), quantity), MaxDescriptionLen)
}

// ShortTitle keeps the leading clause of a product title, which is usually the
// brand and product name, capped for use in summaries.
func ShortTitle(title string) string {
	t := clean(title)
	for _, sep := range []string{" - ", " | ", ", ", " (", " ["} {
		if i := strings.Index(t, sep); i >= 10 {
			t = t[:i]
		}
	}
	return Truncate(t, maxShortTitleLen)
}

// Summarize joins short titles with ", " and caps the result at n runes.
func Summarize(titles []string, n int) string {
	short := make([]string, 0, len(titles))
	for _, t := range titles {
		if s := ShortTitle(t); s != "" {
			short = append(short, s)
		}
	}
	return Truncate(strings.Join(short, ", "), n)
}

func withQuantity(title string, quantity int) string {
	if quantity > 1 {
		return fmt.Sprintf("%dx %s", quantity, title)
	}
	return title
}

func clean(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
