// Package plan turns the decision-maker's plan text into a queue of
// catalogue operation names.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrPlanParse is returned by ParseList for text that is not a bracketed list
// of quoted strings. Sequencer recovers from it with Tokenize.
var ErrPlanParse = errors.New("plan parse failure")

// ParseList parses a literal list such as ["adjust_contrast", 'adjust_tone'].
// Only quoted strings are accepted as items; a trailing comma is allowed.
func ParseList(text string) ([]string, error) {
	p := &listParser{src: text}
	items, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}
	return items, nil
}

type listParser struct {
	src string
	pos int
}

func (p *listParser) parse() ([]string, error) {
	p.skipSpace()
	if err := p.expect('['); err != nil {
		return nil, err
	}
	items := []string{}
	p.skipSpace()
	if p.peek() == ']' {
		p.pos++
		return items, p.end()
	}
	for {
		p.skipSpace()
		item, err := p.quoted()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == ']' {
				p.pos++
				return items, p.end()
			}
		case ']':
			p.pos++
			return items, p.end()
		default:
			return nil, p.errorf("expected ',' or ']'")
		}
	}
}

func (p *listParser) quoted() (string, error) {
	quote := rune(p.peek())
	if quote != '"' && quote != '\'' {
		return "", p.errorf("expected quoted string")
	}
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		p.pos += size
		switch {
		case r == quote:
			return b.String(), nil
		case r == '\\':
			if p.pos >= len(p.src) {
				return "", p.errorf("unterminated escape")
			}
			next, nsize := utf8.DecodeRuneInString(p.src[p.pos:])
			p.pos += nsize
			b.WriteRune(next)
		default:
			b.WriteRune(r)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *listParser) end() error {
	p.skipSpace()
	if p.pos != len(p.src) {
		return p.errorf("unexpected trailing text")
	}
	return nil
}

func (p *listParser) expect(r byte) error {
	if p.peek() != r {
		return p.errorf("expected %q", r)
	}
	p.pos++
	return nil
}

func (p *listParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *listParser) skipSpace() {
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func (p *listParser) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

// Tokenize is the heuristic fallback: strip brackets and quotes, split on
// commas, trim whitespace, drop empty tokens.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '(', ')', '"', '\'', '`':
			return -1
		}
		return r
	}, text)

	var tokens []string
	for _, part := range strings.Split(cleaned, ",") {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
