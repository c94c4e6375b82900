package codetext

import (
	"encoding/xml"
	"io"
	"strings"
)

// PrettyXML re-serializes an XML document with deterministic two-space
// indentation. Whitespace-only text nodes are dropped so the output
// depends only on document structure. Input that fails to parse is
// returned unchanged.
func PrettyXML(doc string) string {
	dec := xml.NewDecoder(strings.NewReader(doc))
	var out strings.Builder
	enc := xml.NewEncoder(&out)
	enc.Indent("", "  ")

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return doc
		}

		if cd, isText := tok.(xml.CharData); isText {
			if strings.TrimSpace(string(cd)) == "" {
				continue
			}
			tok = xml.CharData(strings.TrimSpace(string(cd)))
		}

		if err := enc.EncodeToken(tok); err != nil {
			return doc
		}
	}

	if err := enc.Flush(); err != nil {
		return doc
	}
	return strings.TrimSpace(out.String())
}
