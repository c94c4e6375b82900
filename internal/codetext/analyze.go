package codetext

// Options bound the cost of a single analysis. The formatting state
// machines are driven by pattern matching over potentially adversarial
// text, so oversized fragments skip formatting and fall back to the
// normalized code, a recoverable partial result rather than an error.
type Options struct {
	// MaxFormatBytes disables pretty-printing for fragments larger
	// than this many bytes. Zero applies DefaultMaxFormatBytes;
	// negative disables the cutoff.
	MaxFormatBytes int
}

// DefaultMaxFormatBytes is the formatting cutoff applied when Options
// leaves MaxFormatBytes zero.
const DefaultMaxFormatBytes = 1 << 20

// Result is the structured record produced for one raw fragment.
type Result struct {
	Language         Language
	SourceKind       SourceKind
	PrettyCode       string
	DisplayLineCount int
	Digest           string
	Findings         Findings
	Truncated        bool // formatting skipped by the size cutoff
}

// Format renders normalized code for display according to language.
// Unknown-language code gets whitespace cleanup only.
func Format(code string, lang Language) string {
	code = Normalize(code)
	if code == "" {
		return ""
	}
	switch lang {
	case LangCSharp:
		return FormatCSharp(code)
	case LangVB:
		return FormatVB(code)
	default:
		return normalizeWhitespace(code)
	}
}

// Analyze runs the full recovery pass for one raw fragment: extraction,
// normalization, language resolution, findings scan, digest, and
// formatting. It is a pure function of its inputs and never fails; every
// degradation path yields a usable Result.
func Analyze(raw string, languageHint string, opts Options) Result {
	clean, kind := Extract(raw)
	norm := Normalize(clean)

	lang := InferLanguage(languageHint, norm)
	findings := ScanFindings(norm)
	digest := Digest(norm)

	cutoff := opts.MaxFormatBytes
	if cutoff == 0 {
		cutoff = DefaultMaxFormatBytes
	}

	pretty := norm
	truncated := false
	if cutoff > 0 && len(norm) > cutoff {
		truncated = true
	} else {
		pretty = Format(norm, lang)
	}

	return Result{
		Language:         lang,
		SourceKind:       kind,
		PrettyCode:       pretty,
		DisplayLineCount: DisplayLineCount(pretty),
		Digest:           digest,
		Findings:         findings,
		Truncated:        truncated,
	}
}
