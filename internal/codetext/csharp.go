package codetext

import (
	"regexp"
	"strings"
)

// Heuristic formatter for the brace-delimited language family. Exports
// routinely jam whole methods onto one physical line; the pipeline
// re-expands them (newlines around braces, one statement per semicolon)
// and then indents by brace depth. Output is best-effort: unbalanced
// input clamps at indent zero rather than failing.

var (
	csElseAfterParen    = regexp.MustCompile(`(?i)\)\s*else\s*\{`)
	csElseAfterBrace    = regexp.MustCompile(`(?i)\}\s*else\s*\{`)
	csCatchAfterBrace   = regexp.MustCompile(`(?i)\}\s*catch\s*\(`)
	csFinallyAfterBrace = regexp.MustCompile(`(?i)\}\s*finally\s*\{`)
	blankLineRuns       = regexp.MustCompile(`\n{3,}`)
)

// expandCSharpOneLiners splits one-line brace style into multiple lines
// so brace-depth indentation has something to work with.
func expandCSharpOneLiners(code string) string {
	if code == "" {
		return ""
	}

	s := strings.ReplaceAll(code, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.ReplaceAll(s, "{", "{\n")
	s = strings.ReplaceAll(s, "}", "\n}\n")

	// else/catch/finally land on their own lines regardless of the
	// original spacing.
	s = csElseAfterParen.ReplaceAllString(s, ")\nelse\n{")
	s = csElseAfterBrace.ReplaceAllString(s, "}\nelse\n{")
	s = csCatchAfterBrace.ReplaceAllString(s, "}\ncatch(")
	s = csFinallyAfterBrace.ReplaceAllString(s, "}\nfinally\n{")

	// Split semicolon-terminated statements onto their own lines,
	// except inside a for(...) header. The header detection is
	// deliberately primitive: a line whose trimmed text starts with
	// "for(" sets a flag that the first ")" clears. Multi-line or
	// nested-parenthesis headers defeat it; that limitation is part of
	// the documented best-effort contract and is not to be shored up.
	var out []string
	inFor := false
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		lower := strings.ToLower(t)
		if strings.HasPrefix(lower, "for(") || strings.HasPrefix(lower, "for (") {
			inFor = true
		}
		suppress := inFor
		if inFor && strings.Contains(t, ")") {
			inFor = false
		}

		if !suppress && strings.Contains(line, ";") {
			parts := strings.Split(line, ";")
			for _, p := range parts[:len(parts)-1] {
				if strings.TrimSpace(p) != "" {
					out = append(out, strings.TrimSpace(p)+";")
				}
			}
			if tail := strings.TrimSpace(parts[len(parts)-1]); tail != "" {
				out = append(out, tail)
			}
		} else {
			out = append(out, line)
		}
	}

	s = strings.Join(out, "\n")
	s = blankLineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// collapseSpacesOutsideStrings squeezes runs of whitespace down to one
// space, leaving string literals byte-for-byte intact. Backslash escapes
// inside literals (\") do not terminate the literal.
func collapseSpacesOutsideStrings(line string) string {
	var out strings.Builder
	out.Grow(len(line))

	sc := stringScanner{style: escapeBackslash}
	prevSpace := false
	for i := 0; i < len(line); {
		consumed, inString := sc.step(line, i)
		if inString {
			out.WriteString(line[i : i+consumed])
			prevSpace = false
			i += consumed
			continue
		}

		ch := line[i]
		switch ch {
		case ' ', '\t', '\v', '\f':
			if !prevSpace {
				out.WriteByte(' ')
			}
			prevSpace = true
		default:
			out.WriteByte(ch)
			prevSpace = false
		}
		i += consumed
	}

	return strings.TrimRight(out.String(), " ")
}

// FormatCSharp renders brace-family code as indented multi-line text.
// It never fails; pathological input produces imperfect but valid output.
func FormatCSharp(code string) string {
	code = expandCSharpOneLiners(code)
	if code == "" {
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(code, "\t", "    "), "\n")
	indent := 0
	var out []string

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			// keep at most one blank line
			if len(out) > 0 && out[len(out)-1] != "" {
				out = append(out, "")
			}
			continue
		}

		line = collapseSpacesOutsideStrings(line)

		if strings.HasPrefix(line, "}") {
			indent = max(indent-1, 0)
		}

		out = append(out, strings.Repeat("    ", indent)+line)

		indent += strings.Count(line, "{") - strings.Count(line, "}")
		if indent < 0 {
			indent = 0
		}
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
