package command

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPattern is returned for patterns outside the grammar.
var ErrInvalidPattern = errors.New("invalid command pattern")

const (
	optionalMarker = "?(.*)"
	requiredMarker = "(.*)"
)

// Capture describes the argument region of a pattern.
type Capture int

const (
	CaptureNone Capture = iota
	CaptureOptional
	CaptureRequired
)

// Matcher is a compiled pattern: one or more literal words followed by an
// optional capture region.
type Matcher struct {
	words   []string
	capture Capture
}

// Compile parses a pattern of the form `word [word...]`, `word ?(.*)` or
// `word (.*)`.
func Compile(pattern string) (Matcher, error) {
	p := strings.TrimSpace(pattern)
	capture := CaptureNone
	switch {
	case strings.HasSuffix(p, optionalMarker):
		capture = CaptureOptional
		p = p[:len(p)-len(optionalMarker)]
	case strings.HasSuffix(p, requiredMarker):
		capture = CaptureRequired
		p = p[:len(p)-len(requiredMarker)]
	}

	words := strings.Fields(strings.ToLower(p))
	if len(words) == 0 {
		return Matcher{}, fmt.Errorf("%w: %q has no literal", ErrInvalidPattern, pattern)
	}
	for _, w := range words {
		if strings.ContainsAny(w, "()?*") {
			return Matcher{}, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}
	return Matcher{words: words, capture: capture}, nil
}

// Literal is the command word(s) without the capture marker.
func (m Matcher) Literal() string { return strings.Join(m.words, " ") }

// Capture reports the capture mode.
func (m Matcher) Capture() Capture { return m.capture }

// SingleWord reports whether the literal is one token, which makes it
// eligible for exact lookup.
func (m Matcher) SingleWord() bool { return len(m.words) == 1 }

// Match tests body, the text after the command prefix. Capturing patterns
// accept anything after the literal, with or without a separating space,
// and a missing required capture yields an empty argument.
func (m Matcher) Match(body string) (string, bool) {
	rest := body
	for i, w := range m.words {
		if i > 0 {
			trimmed := strings.TrimLeft(rest, " \t\n")
			if len(trimmed) == len(rest) {
				return "", false
			}
			rest = trimmed
		}
		if len(rest) < len(w) || !strings.EqualFold(rest[:len(w)], w) {
			return "", false
		}
		rest = rest[len(w):]
	}

	if m.capture == CaptureNone {
		if strings.TrimSpace(rest) != "" {
			return "", false
		}
		return "", true
	}
	return strings.TrimSpace(rest), true
}
