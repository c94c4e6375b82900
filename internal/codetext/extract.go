package codetext

import (
	"encoding/xml"
	"io"
	"strings"
)

// SourceKind records how the code text of a fragment was recovered.
type SourceKind int

const (
	// SourceRaw means the fragment was not XML-wrapped (or failed to
	// parse as XML) and is used verbatim after normalization.
	SourceRaw SourceKind = iota
	// SourceCode means an inner code node was found inside a stage
	// XML wrapper.
	SourceCode
	// SourceXMLPretty means the wrapper XML was valid but carried no
	// recognizable code node; the pretty-printed XML is shown instead.
	SourceXMLPretty
)

// String returns the export/report name for the kind.
func (k SourceKind) String() string {
	switch k {
	case SourceCode:
		return "Code"
	case SourceXMLPretty:
		return "XmlPretty"
	default:
		return "Raw"
	}
}

// codeTagCandidates are the inner element names that exports use to nest
// source text, in priority order: a generic code tag first, then script
// and body/text wrappers, then language-specific tags.
var codeTagCandidates = []string{"code", "codetext", "script", "body", "text", "vb", "csharp"}

// Extract recovers the code text from a possibly-XML-wrapped fragment.
// It never fails: XML parse errors degrade to treating the input as raw
// text. Empty input yields ("", SourceRaw).
func Extract(raw string) (string, SourceKind) {
	if raw == "" {
		return "", SourceRaw
	}

	trimmed := strings.TrimSpace(raw)

	// Only fragments that look like stage XML are worth a parse attempt.
	if strings.HasPrefix(trimmed, "<") &&
		(strings.Contains(trimmed, "<stage") || strings.Contains(trimmed, "</stage>")) {

		texts, ok := collectElementText(trimmed, codeTagCandidates)
		if ok {
			for _, tag := range codeTagCandidates {
				if txt := texts[tag]; strings.TrimSpace(txt) != "" {
					return Normalize(txt), SourceCode
				}
			}
			// Valid wrapper, no code node: show the XML itself, readable.
			return PrettyXML(trimmed), SourceXMLPretty
		}
	}

	return Normalize(raw), SourceRaw
}

// collectElementText walks the XML token stream and records the first
// character-data content seen for each wanted element name. The second
// return value is false when the document does not parse.
func collectElementText(doc string, wanted []string) (map[string]string, bool) {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[w] = true
	}

	texts := make(map[string]string)
	dec := xml.NewDecoder(strings.NewReader(doc))

	// Stack of element names; text accumulates for the innermost
	// wanted element currently open.
	var stack []string
	var buf strings.Builder
	capturing := ""

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			stack = append(stack, name)
			if capturing == "" && want[name] {
				if _, seen := texts[name]; !seen {
					capturing = name
					buf.Reset()
				}
			}
		case xml.CharData:
			if capturing != "" {
				buf.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, false
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if capturing != "" && name == capturing {
				texts[capturing] = buf.String()
				capturing = ""
			}
		}
	}

	if len(stack) != 0 {
		return nil, false
	}
	return texts, true
}
