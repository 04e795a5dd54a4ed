package shell

import (
	"strings"

	"github.com/pkg/errors"
)

// ParseLine tokenizes a single command line, mirroring the original's
// parse_line: tokens are whitespace-separated unless quoted with a
// single or double quote, in which case the token runs to the matching
// closing quote. Double-quoted tokens additionally recognise the
// escapes \" and \\; single-quoted tokens are taken literally. An
// unterminated quote, a dangling backslash, or an unsupported escape
// sequence is reported as an error rather than silently swallowed.
func ParseLine(line string) ([]string, error) {
	var args []string
	runes := []rune(line)
	i := 0
	n := len(runes)

	for i < n {
		for i < n && isSpace(runes[i]) {
			i++
		}
		if i >= n {
			break
		}

		var out strings.Builder
		if runes[i] == '\'' || runes[i] == '"' {
			quote := runes[i]
			i++
			closed := false
			for i < n {
				if runes[i] == quote {
					closed = true
					i++
					break
				}
				if quote == '"' && runes[i] == '\\' {
					i++
					if i >= n {
						return nil, errors.New("unexpected \\ or quote at end of argument")
					}
					switch runes[i] {
					case '"', '\\':
						out.WriteRune(runes[i])
						i++
					default:
						return nil, errors.New("unsupported escape sequence: only \\\\ and \\\" are recognised")
					}
					continue
				}
				out.WriteRune(runes[i])
				i++
			}
			if !closed {
				return nil, errors.New("no closing quote found")
			}
		} else {
			for i < n && !isSpace(runes[i]) {
				out.WriteRune(runes[i])
				i++
			}
		}
		args = append(args, out.String())
	}

	return args, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}
