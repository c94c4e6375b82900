package codetext

import (
	"regexp"
	"strings"
)

// Language is the closed set of source-code families recovered from
// stage fragments. Keeping it a closed type (rather than a free-form
// string) makes every consumer switch exhaustive.
type Language int

const (
	LangUnknown Language = iota
	LangVB               // Visual Basic .NET family
	LangCSharp           // C# family
)

// String returns the canonical display name used in reports and exports.
func (l Language) String() string {
	switch l {
	case LangVB:
		return "VB"
	case LangCSharp:
		return "C#"
	default:
		return "Unknown"
	}
}

// ParseLanguage maps a canonical display name back to a Language.
// Unrecognized names map to LangUnknown.
func ParseLanguage(s string) Language {
	switch s {
	case "VB":
		return LangVB
	case "C#":
		return LangCSharp
	default:
		return LangUnknown
	}
}

// NormalizeLanguage canonicalizes a metadata language hint via
// case-insensitive synonym matching. Hints that match neither family
// resolve to LangUnknown; content inference is the caller's fallback.
func NormalizeLanguage(hint string) Language {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "vb", "vb.net", "visualbasic", "visual basic", "visual_basic":
		return LangVB
	case "c#", "csharp", "cs", "c sharp":
		return LangCSharp
	default:
		return LangUnknown
	}
}

// Content signatures, checked in order. The VB patterns run first: the
// C# structural heuristic (brace + semicolon presence) is coarse and
// would otherwise shadow ambiguous inputs.
var (
	vbKeywordLine = regexp.MustCompile(`(?m)^\s*(dim|set|byval|byref|end if|end sub|end function|select case|end select)\b`)
	vbIfThenLine  = regexp.MustCompile(`(?m)^\s*if\s+.*\bthen\b`)
	csKeywordLine = regexp.MustCompile(`(?m)^\s*(using\s+\w+|public|private|protected|internal)\b`)
)

// InferLanguage resolves the language for a code fragment. An explicit
// hint wins when it canonicalizes to a known family; otherwise the
// fragment's content is probed with ordered lexical signatures.
func InferLanguage(hint string, code string) Language {
	if lang := NormalizeLanguage(hint); lang != LangUnknown {
		return lang
	}

	lower := strings.ToLower(code)

	if vbKeywordLine.MatchString(lower) || vbIfThenLine.MatchString(lower) {
		return LangVB
	}
	if csKeywordLine.MatchString(lower) {
		return LangCSharp
	}
	if strings.Contains(code, "{") && strings.Contains(code, "}") && strings.Contains(code, ";") {
		return LangCSharp
	}
	return LangUnknown
}
