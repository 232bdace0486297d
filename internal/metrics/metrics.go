// Package metrics computes complexity and maintainability scores from Rust
// source text.
package metrics

import (
	"math"
	"strings"
)

var branchKeywords = map[string]bool{
	"if":       true,
	"else":     true,
	"match":    true,
	"for":      true,
	"while":    true,
	"loop":     true,
	"return":   true,
	"break":    true,
	"continue": true,
}

var controlFlowKeywords = map[string]bool{
	"if":    true,
	"else":  true,
	"match": true,
	"for":   true,
	"while": true,
	"loop":  true,
}

// keywords that can precede "(" without being a call.
var nonCallKeywords = map[string]bool{
	"if": true, "else": true, "match": true, "for": true, "while": true,
	"loop": true, "return": true, "in": true, "let": true, "mut": true,
	"ref": true, "move": true, "fn": true, "as": true, "impl": true,
	"dyn": true, "where": true, "break": true, "continue": true,
}

// Cyclomatic returns 1 plus the number of branch-inducing tokens in body, plus
// half the number of single "|" closure delimiters.
func Cyclomatic(body string) int {
	c, _ := Complexity(body)
	return c
}

// Cognitive returns the weighted, nesting-sensitive complexity of body.
func Cognitive(body string) int {
	_, c := Complexity(body)
	return c
}

// Complexity lexes body once and returns its cyclomatic and cognitive
// complexity.
func Complexity(body string) (cyclomatic, cognitive int) {
	toks := lex(body)

	base := 0
	if len(toks) > 0 && toks[0].text == "{" {
		base = 1
	}

	var branches, pipes, calls, dots int
	nestedLines := make(map[int]int)

	for i, t := range toks {
		switch t.kind {
		case tokIdent:
			if branchKeywords[t.text] {
				branches++
			}
			switch t.text {
			case "match":
				cognitive += 2
			case "if", "else", "for", "while", "loop":
				cognitive++
			case "Result", "Option":
				if next(toks, i) == "<" {
					cognitive++
				}
			}
			if controlFlowKeywords[t.text] {
				nestedLines[t.line] = max(0, t.depth-base)
			}
			if !nonCallKeywords[t.text] && next(toks, i) == "(" {
				calls++
			}
		case tokPunct:
			switch t.text {
			case "&&", "||", "?":
				branches++
				cognitive++
			case "|":
				pipes++
			case ".":
				dots++
			case "!":
				if i > 0 && toks[i-1].kind == tokIdent && next(toks, i) == "(" {
					calls++
				}
			}
		}
	}

	cyclomatic = 1 + branches + pipes/2
	cognitive += calls/2 + dots/4
	for _, d := range nestedLines {
		cognitive += d
	}
	return cyclomatic, cognitive
}

func next(toks []token, i int) string {
	if i+1 < len(toks) {
		return toks[i+1].text
	}
	return ""
}

// Maintainability returns the classical maintainability index
//
//	171 - 5.2*ln(3*LOC) - 0.23*G - 16.2*ln(LOC) + 50*sin(sqrt(2.4*CM))
//
// scaled to [0,100]. CM is the comment-to-code ratio. Negative inputs are
// treated as zero and LOC == 0 yields 100.
func Maintainability(loc, commentLines, complexity int) float64 {
	loc = max(loc, 0)
	commentLines = max(commentLines, 0)
	complexity = max(complexity, 0)
	if loc == 0 {
		return 100
	}

	l := float64(loc)
	volume := l * 3
	cm := float64(commentLines) / l

	mi := 171 -
		5.2*math.Log(volume) -
		0.23*float64(complexity) -
		16.2*math.Log(l) +
		50*math.Sin(math.Sqrt(2.4*cm))

	scaled := mi * 100 / 171
	if math.IsNaN(scaled) {
		return 0
	}
	return math.Min(100, math.Max(0, scaled))
}

// Lines counts lines the way a line iterator does: a trailing newline does
// not start a new line and empty input has zero lines.
func Lines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// CommentLines counts lines whose trimmed text starts with "//" or "/*".
func CommentLines(content string) int {
	n := 0
	for _, l := range strings.Split(content, "\n") {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "//") || strings.HasPrefix(l, "/*") {
			n++
		}
	}
	return n
}
