package codetext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Extract:
// - Stage XML with a known inner code tag yields (code, SourceCode)
// - Candidate tags are searched in priority order, first non-empty wins
// - Valid stage XML without a code node yields pretty-printed XML
// - Non-XML input and malformed XML degrade to (normalized input, SourceRaw)
// - Empty input yields ("", SourceRaw)

func TestExtract_CodeNode(t *testing.T) {
	t.Parallel()

	code, kind := Extract("<stage><code>foo</code></stage>")
	assert.Equal(t, "foo", code)
	assert.Equal(t, SourceCode, kind)
}

func TestExtract_NestedCodeNode(t *testing.T) {
	t.Parallel()

	code, kind := Extract(`<stage type="Code"><properties><script>x = 1</script></properties></stage>`)
	assert.Equal(t, "x = 1", code)
	assert.Equal(t, SourceCode, kind)
}

func TestExtract_CandidatePriority(t *testing.T) {
	t.Parallel()

	// "code" outranks "script" regardless of document order.
	code, kind := Extract("<stage><script>second</script><code>first</code></stage>")
	assert.Equal(t, "first", code)
	assert.Equal(t, SourceCode, kind)
}

func TestExtract_EmptyCandidateSkipped(t *testing.T) {
	t.Parallel()

	code, kind := Extract("<stage><code>  </code><script>real</script></stage>")
	assert.Equal(t, "real", code)
	assert.Equal(t, SourceCode, kind)
}

func TestExtract_XMLPrettyFallback(t *testing.T) {
	t.Parallel()

	code, kind := Extract("<stage><unknowntag/></stage>")
	assert.Equal(t, SourceXMLPretty, kind)
	assert.Contains(t, code, "<stage>")
	assert.Contains(t, code, "unknowntag")
	// Deterministic indentation: the child sits on its own indented line.
	assert.Contains(t, code, "\n  ")
}

func TestExtract_RawFallbacks(t *testing.T) {
	t.Parallel()

	code, kind := Extract("<not xml")
	assert.Equal(t, Normalize("<not xml"), code)
	assert.Equal(t, SourceRaw, kind)

	// Looks like stage XML but does not parse.
	code, kind = Extract("<stage><code>unclosed</stage>")
	assert.Equal(t, SourceRaw, kind)
	assert.Contains(t, code, "unclosed")

	// Plain code is passed through normalized.
	code, kind = Extract("Dim x = 1\r\nDim y = 2  ")
	assert.Equal(t, "Dim x = 1\nDim y = 2", code)
	assert.Equal(t, SourceRaw, kind)
}

func TestExtract_Empty(t *testing.T) {
	t.Parallel()

	code, kind := Extract("")
	require.Equal(t, "", code)
	require.Equal(t, SourceRaw, kind)
}

func TestSourceKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Code", SourceCode.String())
	assert.Equal(t, "XmlPretty", SourceXMLPretty.String())
	assert.Equal(t, "Raw", SourceRaw.String())
}
