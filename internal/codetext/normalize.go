// Package codetext recovers readable, attributable source code from the
// opaque text fragments embedded in exported automation-process stages.
//
// A fragment may arrive with no language metadata, jammed onto a single
// physical line, or wrapped in another layer of stage XML. The package
// extracts the inner code, classifies its language, reformats it into
// indented multi-line form, and scans it for lexical risk signals. Every
// function is pure and total: malformed input degrades to best-effort
// output, never to an error.
package codetext

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize canonicalizes line endings and whitespace:
// CRLF/CR collapse to LF, every line is right-trimmed, and the whole
// string is trimmed of leading/trailing blank space.
//
// Normalize is idempotent. All hashing and findings scans operate on
// its output, never on raw input.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\v\f")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Digest returns the SHA-256 hex digest of the UTF-8 bytes of s.
// Callers pass normalized code so that formatting changes never perturb
// content identity; the digest of "" is the well-defined empty-string hash.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// LineCount returns the number of lines in the normalized form of s,
// or 0 for blank input.
func LineCount(s string) int {
	n := Normalize(s)
	if n == "" {
		return 0
	}
	return strings.Count(n, "\n") + 1
}

// DisplayLineCount counts lines exactly as rendered: no normalization,
// no trimming. It must reflect what the reader sees, so it is computed
// over pretty-printed output rather than normalized code.
func DisplayLineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// normalizeWhitespace is the display fallback for code whose language is
// unknown: tabs become four spaces, trailing whitespace is dropped, and
// runs of blank lines collapse to a single one.
func normalizeWhitespace(code string) string {
	lines := strings.Split(strings.ReplaceAll(code, "\t", "    "), "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			blankRun++
			if blankRun <= 1 {
				out = append(out, "")
			}
			continue
		}
		blankRun = 0
		out = append(out, strings.TrimRight(ln, " \t"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
