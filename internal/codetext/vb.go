package codetext

import (
	"regexp"
	"strings"
)

// Heuristic formatter for the Basic-dialect language family. There is no
// parse tree here: the splitter makes jammed-together lines sane and the
// indenter classifies each line's leading keyword against the central
// tables below. Misclassifications degrade readability, never correctness
// of the surrounding batch.

// vbStatementKeywords introduce a statement. When one appears mid-line
// outside a string literal (exports often drop the separators), the line
// splits immediately before it. Order matters: earlier entries win.
var vbStatementKeywords = []string{
	// declarations / flow
	"dim ",
	"set ",
	"const ",
	"if ",
	"elseif ",
	"else",
	"end if",
	"select case",
	"case ",
	"end select",

	// exception handling
	"try",
	"catch ",
	"finally",
	"end try",

	// loops
	"for each ",
	"for ",
	"while ",
	"do ",
	"loop",
	"next",

	// exits / returns
	"return",
	"exit sub",
	"exit function",
	"exit for",
	"exit while",
}

// Indentation tables: a line's leading keyword classifies it as closing a
// block, sitting mid-block (Else/Case/Catch: one level shallower than the
// body, depth restored afterwards), or opening a block.
var (
	vbBlockEnders = []string{
		"end if", "end sub", "end function", "end select", "end try",
		"next", "loop", "wend", "end while", "end with",
	}
	vbBlockStarters = []string{
		"if ", "select case", "try", "for ", "while ", "with ", "do ", "sub ", "function ",
	}
	vbMidBlock = []string{"else", "elseif", "case ", "catch", "finally"}
)

var (
	vbContinuation = regexp.MustCompile(`\s+_\s*$`)
	vbIfThenElse   = regexp.MustCompile(`(?i)^if\s+(.*?)\s+then\s+(.*?)\s+else\s+(.*)$`)
	vbIfThen       = regexp.MustCompile(`(?i)^if\s+(.*?)\s+then\s+(.+)$`)
)

// joinVBContinuations merges " _" line continuations into single logical
// lines, replacing each marker with one space.
func joinVBContinuations(s string) []string {
	var joined []string
	buf := ""
	for _, raw := range strings.Split(s, "\n") {
		line := strings.TrimRight(raw, " \t")
		if buf != "" {
			buf += strings.TrimLeft(line, " \t")
		} else {
			buf = line
		}

		if vbContinuation.MatchString(buf) {
			buf = vbContinuation.ReplaceAllString(buf, " ")
			continue
		}
		joined = append(joined, buf)
		buf = ""
	}
	if buf != "" {
		joined = append(joined, buf)
	}
	return joined
}

// splitColonsOutsideStrings splits a line on ':' statement separators,
// honoring the doubled-"" escape convention inside string literals.
// Empty segments are dropped.
func splitColonsOutsideStrings(line string) []string {
	var parts []string
	var cur strings.Builder

	sc := stringScanner{style: escapeDoubled}
	for i := 0; i < len(line); {
		consumed, inString := sc.step(line, i)

		if !inString && line[i] == ':' {
			if part := strings.TrimSpace(cur.String()); part != "" {
				parts = append(parts, part)
			}
			cur.Reset()
			i++
			for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
				i++
			}
			continue
		}

		cur.WriteString(line[i : i+consumed])
		i += consumed
	}

	if part := strings.TrimSpace(cur.String()); part != "" {
		parts = append(parts, part)
	}
	return parts
}

// splitMidlineVBStatements splits a line before statement keywords that
// appear past the start of the accumulated segment, outside strings.
func splitMidlineVBStatements(line string) []string {
	var parts []string
	var cur strings.Builder
	lower := strings.ToLower(line)

	sc := stringScanner{style: escapeDoubled}
	for i := 0; i < len(line); {
		consumed, inString := sc.step(line, i)

		if !inString && cur.Len() > 0 {
			seg := strings.ToLower(cur.String())
			// An Else belonging to a pending single-line conditional
			// must stay on the line so the If/Then/Else expansion can
			// rewrite the whole construct.
			inConditional := strings.HasPrefix(seg, "if ") && strings.Contains(seg, " then ")
			for _, kw := range vbStatementKeywords {
				if inConditional && (kw == "else" || kw == "elseif ") {
					continue
				}
				if strings.HasPrefix(lower[i:], kw) {
					if part := strings.TrimSpace(cur.String()); part != "" {
						parts = append(parts, part)
					}
					cur.Reset()
					break
				}
			}
		}

		cur.WriteString(line[i : i+consumed])
		i += consumed
	}

	if tail := strings.TrimSpace(cur.String()); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// expandSingleLineIf rewrites "If cond Then stmt [Else stmt]" one-liners
// into canonical multi-line blocks.
func expandSingleLineIf(lines []string) []string {
	var out []string
	for _, raw := range lines {
		t := strings.TrimSpace(raw)
		if t == "" {
			out = append(out, "")
			continue
		}

		if m := vbIfThenElse.FindStringSubmatch(t); m != nil {
			out = append(out,
				"If "+strings.TrimSpace(m[1])+" Then",
				"    "+strings.TrimSpace(m[2]),
				"Else",
				"    "+strings.TrimSpace(m[3]),
				"End If",
			)
			continue
		}

		if m := vbIfThen.FindStringSubmatch(t); m != nil && !strings.HasSuffix(strings.ToLower(t), "then") {
			out = append(out,
				"If "+strings.TrimSpace(m[1])+" Then",
				"    "+strings.TrimSpace(m[2]),
				"End If",
			)
			continue
		}

		out = append(out, t)
	}
	return out
}

// splitVBOneLiners expands run-together Basic-dialect code into
// one-statement-per-line form.
func splitVBOneLiners(code string) string {
	if code == "" {
		return ""
	}

	s := strings.ReplaceAll(code, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	joined := joinVBContinuations(s)

	var lines []string
	for _, raw := range joined {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, splitColonsOutsideStrings(raw)...)
	}

	var expanded []string
	for _, raw := range lines {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			expanded = append(expanded, "")
			continue
		}
		expanded = append(expanded, splitMidlineVBStatements(raw)...)
	}

	out := strings.Join(expandSingleLineIf(expanded), "\n")
	out = blankLineRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// FormatVB renders Basic-dialect code as indented multi-line text using
// keyword-block matching. It never fails; unmatched blocks clamp at
// indent zero.
func FormatVB(code string) string {
	code = splitVBOneLiners(Normalize(code))
	if code == "" {
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(code, "\t", "    "), "\n")
	indent := 0
	var out []string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			out = append(out, "")
			continue
		}

		lower := strings.ToLower(line)

		if hasAnyPrefix(lower, vbBlockEnders) {
			indent = max(indent-1, 0)
		}

		if hasAnyPrefix(lower, vbMidBlock) {
			indent = max(indent-1, 0)
			out = append(out, strings.Repeat("    ", indent)+line)
			indent++
			continue
		}

		out = append(out, strings.Repeat("    ", indent)+line)

		if hasAnyPrefix(lower, vbBlockStarters) {
			switch {
			case strings.HasPrefix(lower, "if ") && strings.HasSuffix(lower, "then"):
				indent++
			case strings.HasPrefix(lower, "if ") && strings.Contains(lower, " then ") && !strings.HasSuffix(lower, "then"):
				// single-line If that survived splitting: no block opened
			default:
				indent++
			}
		}
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
