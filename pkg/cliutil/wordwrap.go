package cliutil

import (
	"strings"
)

// Wrap the string `s` to a maximum width `w`.  Pass `w` == 0 to do no wrapping.
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func Wrap(w int, s string) string {
	return wrap(0, w, s)
}

// Wrap the string `s` to a maximum width `w` with leading indent `i`.  The first line is not
// indented (this is assumed to be done by caller).  Pass `w` == 0 to do no wrapping
//
// In order to have some room for slop to avoid things like a short word being on a line by itself,
// most lines are actually wrapped to `w - 5`.
func WrapIndent(i, w int, s string) string {
	return wrap(i, w, s)
}

// wrap does the work for Wrap and WrapIndent: greedy word-wrap of each
// line of `s`, keeping lines shorter than `w - 5` counting the `i`-column
// indent, which is written on every output line but the first.  Runs of
// spaces between words are preserved, so two-space sentence separators
// survive wrapping.
func wrap(i, w int, s string) string {
	if w == 0 {
		return s
	}
	limit := w - 5
	indent := strings.Repeat(" ", i)

	var lines []string
	for _, input := range strings.Split(s, "\n") {
		words := strings.Split(input, " ")
		cur := words[0]
		curWidth := i + len(cur)
		for _, word := range words[1:] {
			if word != "" && curWidth+1+len(word) >= limit {
				lines = append(lines, strings.TrimRight(cur, " "))
				cur = word
				curWidth = i + len(word)
				continue
			}
			// An empty word is a run of spaces in the input; keep it.
			cur += " " + word
			curWidth += 1 + len(word)
		}
		lines = append(lines, cur)
	}
	return strings.Join(lines, "\n"+indent)
}
