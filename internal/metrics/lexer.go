package metrics

import "unicode"

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokPunct
)

// token is a lexical unit of Rust source outside strings, chars, and comments.
// depth is the brace depth at the start of the token's line.
type token struct {
	kind  tokenKind
	text  string
	line  int
	depth int
}

// lex splits Rust source into identifier and punctuation tokens. String
// literals (including raw and byte strings), char literals, and comments are
// skipped entirely. Lifetimes ('a) are dropped as well.
func lex(src string) []token {
	var toks []token
	line, depth, lineDepth := 0, 0, 0
	rs := []rune(src)
	n := len(rs)
	emit := func(kind tokenKind, text string) {
		toks = append(toks, token{kind: kind, text: text, line: line, depth: lineDepth})
	}
	newline := func() {
		line++
		lineDepth = depth
	}

	for i := 0; i < n; {
		c := rs[i]
		switch {
		case c == '\n':
			newline()
			i++

		case unicode.IsSpace(c):
			i++

		case c == '/' && i+1 < n && rs[i+1] == '/':
			for i < n && rs[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && rs[i+1] == '*':
			// Block comments nest in Rust.
			nest := 0
			for i < n {
				if rs[i] == '/' && i+1 < n && rs[i+1] == '*' {
					nest++
					i += 2
					continue
				}
				if rs[i] == '*' && i+1 < n && rs[i+1] == '/' {
					nest--
					i += 2
					if nest == 0 {
						break
					}
					continue
				}
				if rs[i] == '\n' {
					newline()
				}
				i++
			}

		case c == '"':
			i = skipString(rs, i+1, newline)

		case (c == 'r' || c == 'b') && isRawStringStart(rs, i):
			i = skipRawString(rs, i, newline)

		case c == 'b' && i+1 < n && rs[i+1] == '"':
			i = skipString(rs, i+2, newline)

		case c == 'b' && i+1 < n && rs[i+1] == '\'':
			i = skipChar(rs, i+1)

		case c == '\'':
			i = skipChar(rs, i)

		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < n && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			emit(tokIdent, string(rs[start:i]))

		case unicode.IsDigit(c):
			for i < n && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}

		default:
			if i+1 < n {
				pair := string(rs[i : i+2])
				switch pair {
				case "&&", "||", "|=", "..", "::", "->", "=>", "==", "!=", "<=", ">=":
					emit(tokPunct, pair)
					i += 2
					continue
				}
			}
			switch c {
			case '{':
				depth++
			case '}':
				if depth > 0 {
					depth--
				}
			}
			emit(tokPunct, string(c))
			i++
		}
	}
	return toks
}

func skipString(rs []rune, i int, newline func()) int {
	for i < len(rs) {
		switch rs[i] {
		case '\\':
			if i+1 < len(rs) && rs[i+1] == '\n' {
				newline()
			}
			i += 2
			continue
		case '"':
			return i + 1
		case '\n':
			newline()
		}
		i++
	}
	return i
}

func isRawStringStart(rs []rune, i int) bool {
	j := i
	if rs[j] == 'b' {
		j++
		if j >= len(rs) || rs[j] != 'r' {
			return false
		}
	}
	j++
	for j < len(rs) && rs[j] == '#' {
		j++
	}
	return j < len(rs) && rs[j] == '"'
}

func skipRawString(rs []rune, i int, newline func()) int {
	for rs[i] != '#' && rs[i] != '"' {
		i++
	}
	hashes := 0
	for rs[i] == '#' {
		hashes++
		i++
	}
	i++ // opening quote
	for i < len(rs) {
		if rs[i] == '\n' {
			newline()
		}
		if rs[i] == '"' {
			j := i + 1
			k := 0
			for k < hashes && j < len(rs) && rs[j] == '#' {
				k++
				j++
			}
			if k == hashes {
				return j
			}
		}
		i++
	}
	return i
}

// skipChar consumes a char literal starting at the quote at rs[i], or a
// lifetime when no closing quote follows.
func skipChar(rs []rune, i int) int {
	n := len(rs)
	if i+2 < n && rs[i+1] == '\\' {
		j := i + 2
		for j < n && rs[j] != '\'' && rs[j] != '\n' {
			j++
		}
		if j < n && rs[j] == '\'' {
			return j + 1
		}
		return i + 1
	}
	if i+2 < n && rs[i+2] == '\'' {
		return i + 3
	}
	// Lifetime or label: skip the quote and the identifier after it.
	j := i + 1
	for j < n && (rs[j] == '_' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
		j++
	}
	return j
}
