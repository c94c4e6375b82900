// Package bpxml parses exported automation process/object definitions:
// the stage-based XML dialect in which each executable unit is a "stage"
// element, optionally carrying an embedded code fragment, grouped into
// named subsheets (pages).
//
// Export schemas drift between platform versions, so every lookup here is
// best-effort: missing nodes produce zero values, and a definition that
// fails to parse is reported as an error the caller can skip without
// aborting the batch.
package bpxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// CredentialsResourceObject is the resource object name that marks a
// stage as fetching credentials from the platform vault.
const CredentialsResourceObject = "Blueprism.Automate.clsCredentialsActions"

// DefaultPageName attributes stages that carry no subsheet reference.
const DefaultPageName = "Main Sheet"

// StageTypeCode and StageTypeProcess are the stage types the pipelines
// care about; all other types are carried through verbatim for counting.
const (
	StageTypeCode      = "Code"
	StageTypeProcess   = "Process"
	StageTypeException = "Exception"
)

// LogMode is a stage's logging posture.
type LogMode int

const (
	LogFull      LogMode = iota // no loginhibit node
	LogErrorOnly                // loginhibit onsuccess="true": logs failures only
	LogNone                     // loginhibit without onsuccess
)

// Stage is one executable unit of a definition.
type Stage struct {
	ID           string
	Name         string
	Type         string
	SubsheetID   string
	LanguageHint string // per-stage language metadata, may be empty
	CodeText     string // embedded code, or the stage XML itself when no code node exists
	LogInhibited bool
	LogMode      LogMode
	Resource     string // resource object attribute, if any
	CalledID     string // processid child for Process stages, upper-cased
}

// Definition is a parsed process or object export.
type Definition struct {
	Version       string            // bpversion root attribute
	LanguageHint  string            // root-level language metadata
	GlobalCode    string            // object-level shared code, if any
	SubsheetNames map[string]string // subsheet id → display name
	Stages        []Stage
	Resources     []string // unique resource object names, document order
}

// PageName resolves a stage's subsheet reference to a display name.
func (d *Definition) PageName(s Stage) string {
	if s.SubsheetID != "" {
		if name, ok := d.SubsheetNames[s.SubsheetID]; ok {
			return name
		}
	}
	return DefaultPageName
}

// languageTags are the metadata nodes that may carry a language hint,
// searched on the stage first and the document root second.
var languageTags = []string{"language", "codelanguage", "lang"}

// codeTags are the nodes that may nest a code stage's source text.
var codeTags = []string{"code", "codetext", "script", "text", "body", "vb", "csharp"}

// globalCodeTags are the nodes that may carry an object's shared code.
var globalCodeTags = []string{"globalcode", "global", "globalcodesection", "globalcodeinfo"}

// Parse reads one exported definition. The only error condition is XML
// that does not parse; schema drift never fails.
func Parse(doc string) (*Definition, error) {
	root, err := parseTree(doc)
	if err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}

	def := &Definition{
		Version:       root.attrs["bpversion"],
		SubsheetNames: make(map[string]string),
	}

	// Root-level language metadata.
	for _, tag := range languageTags {
		if n := root.findDescendant(tag); n != nil && strings.TrimSpace(n.text) != "" {
			def.LanguageHint = strings.TrimSpace(n.text)
			break
		}
	}

	// Object-level shared code.
	for _, tag := range globalCodeTags {
		if n := root.findDescendant(tag); n != nil && n.text != "" {
			def.GlobalCode = n.text
			break
		}
	}

	for _, sub := range root.allDescendants("subsheet") {
		id := sub.attrs["subsheetid"]
		name := "Unnamed Subsheet"
		if n := sub.child("name"); n != nil && strings.TrimSpace(n.text) != "" {
			name = n.text
		}
		if id != "" {
			def.SubsheetNames[id] = name
		}
	}

	seenResources := make(map[string]bool)
	for _, res := range root.allDescendants("resource") {
		if obj := res.attrs["object"]; obj != "" && !seenResources[obj] {
			seenResources[obj] = true
			def.Resources = append(def.Resources, obj)
		}
	}

	for _, st := range root.allDescendants("stage") {
		stage := Stage{
			ID:   st.attrs["stageid"],
			Name: st.attrs["name"],
			Type: st.attrs["type"],
		}

		if li := st.child("loginhibit"); li != nil {
			stage.LogInhibited = true
			if strings.EqualFold(li.attrs["onsuccess"], "true") {
				stage.LogMode = LogErrorOnly
			} else {
				stage.LogMode = LogNone
			}
		}

		if n := st.child("subsheetid"); n != nil {
			stage.SubsheetID = strings.TrimSpace(n.text)
		}
		if n := st.child("resource"); n != nil {
			stage.Resource = n.attrs["object"]
		}

		for _, tag := range languageTags {
			if n := st.findDescendant(tag); n != nil && strings.TrimSpace(n.text) != "" {
				stage.LanguageHint = strings.TrimSpace(n.text)
				break
			}
		}
		if stage.LanguageHint == "" {
			stage.LanguageHint = def.LanguageHint
		}

		if stage.Type == StageTypeCode {
			for _, tag := range codeTags {
				if n := st.findDescendant(tag); n != nil && n.text != "" {
					stage.CodeText = n.text
					break
				}
			}
			if stage.CodeText == "" {
				// Keep the stage XML for later refinement; the code
				// extractor downstream knows how to unwrap it.
				stage.CodeText = st.serialize()
			}
		}

		if stage.Type == StageTypeProcess {
			if n := st.child("processid"); n != nil {
				stage.CalledID = strings.ToUpper(strings.TrimSpace(n.text))
			}
		}

		def.Stages = append(def.Stages, stage)
	}

	return def, nil
}

// element is a minimal mutable XML tree node. Element names are
// lower-cased on parse; exports are inconsistent about casing.
type element struct {
	name     string
	attrs    map[string]string
	text     string // concatenated direct character data
	children []*element
}

func parseTree(doc string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))

	var root *element
	var stack []*element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{
				name:  strings.ToLower(t.Name.Local),
				attrs: make(map[string]string, len(t.Attr)),
			}
			for _, a := range t.Attr {
				el.attrs[strings.ToLower(a.Name.Local)] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end element")
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed element")
	}
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	return root, nil
}

// child returns the first direct child with the given name.
func (e *element) child(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// findDescendant returns the first descendant with the given name in
// document order, excluding e itself.
func (e *element) findDescendant(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
		if found := c.findDescendant(name); found != nil {
			return found
		}
	}
	return nil
}

// allDescendants returns every descendant with the given name in
// document order, excluding e itself.
func (e *element) allDescendants(name string) []*element {
	var out []*element
	for _, c := range e.children {
		if c.name == name {
			out = append(out, c)
		}
		out = append(out, c.allDescendants(name)...)
	}
	return out
}

// serialize renders the element subtree back to XML text.
func (e *element) serialize() string {
	var sb strings.Builder
	e.writeTo(&sb)
	return sb.String()
}

func (e *element) writeTo(sb *strings.Builder) {
	sb.WriteString("<" + e.name)
	keys := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(` %s="%s"`, k, escapeAttr(e.attrs[k])))
	}
	if len(e.children) == 0 && strings.TrimSpace(e.text) == "" {
		sb.WriteString(" />")
		return
	}
	sb.WriteString(">")
	if strings.TrimSpace(e.text) != "" {
		sb.WriteString(escapeText(e.text))
	}
	for _, c := range e.children {
		c.writeTo(sb)
	}
	sb.WriteString("</" + e.name + ">")
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(escapeText(s), `"`, "&quot;")
}
