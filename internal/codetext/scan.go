package codetext

// scanState tracks whether a left-to-right character scan is inside a
// string literal. Both formatting pipelines share it; only the escape
// convention differs (backslash for the C family, doubled quote for the
// Basic family), so the convention is part of the scanner, keeping the
// quote rules independently testable.
type scanState int

const (
	scanNormal scanState = iota
	scanInString
	scanEscaped // inside a string, immediately after a backslash
)

type escapeStyle int

const (
	escapeBackslash escapeStyle = iota // "...\"..."
	escapeDoubled                      // "...""..."
)

// stringScanner is a small state machine fed one character at a time.
type stringScanner struct {
	state scanState
	style escapeStyle
}

// step advances the scanner by the character at position i of line and
// reports how many characters were consumed (1, or 2 when a doubled
// quote escape is swallowed whole). inString reflects the state before
// the character is applied, so callers can decide whether position i is
// literal text.
func (s *stringScanner) step(line string, i int) (consumed int, inString bool) {
	ch := line[i]
	switch s.state {
	case scanNormal:
		if ch == '"' {
			s.state = scanInString
		}
		return 1, false

	case scanInString:
		if s.style == escapeBackslash && ch == '\\' {
			s.state = scanEscaped
			return 1, true
		}
		if ch == '"' {
			// Doubled "" inside a Basic-family string is an escaped
			// quote, not a terminator.
			if s.style == escapeDoubled && i+1 < len(line) && line[i+1] == '"' {
				return 2, true
			}
			s.state = scanNormal
			return 1, true
		}
		return 1, true

	default: // scanEscaped
		s.state = scanInString
		return 1, true
	}
}
