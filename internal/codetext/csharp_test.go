package codetext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the C# pipeline:
// - One-line brace style expands to one statement per line
// - if/else siblings indent their bodies one level deeper
// - else/catch/finally land on their own lines regardless of spacing
// - for(;;) headers are not split on semicolons
// - Whitespace collapses outside string literals only; \" does not
//   terminate a literal
// - Unbalanced closing braces clamp at indent zero instead of failing

func TestFormatCSharp_BraceNesting(t *testing.T) {
	t.Parallel()

	got := FormatCSharp("if(x){a();}else{b();}")
	want := strings.Join([]string{
		"if(x){",
		"    a();",
		"}",
		"else",
		"{",
		"    b();",
		"}",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestFormatCSharp_UnbalancedBracesClampAtZero(t *testing.T) {
	t.Parallel()

	got := FormatCSharp("}}}code();")
	require.NotEmpty(t, got)
	for _, line := range strings.Split(got, "\n") {
		assert.False(t, strings.HasPrefix(line, " "), "line %q should sit at indent 0", line)
	}
	assert.Contains(t, got, "code();")
}

func TestFormatCSharp_SemicolonSplit(t *testing.T) {
	t.Parallel()

	got := FormatCSharp("int a = 1; int b = 2; call(a, b);")
	want := "int a = 1;\nint b = 2;\ncall(a, b);"
	assert.Equal(t, want, got)
}

func TestFormatCSharp_ForHeaderNotSplit(t *testing.T) {
	t.Parallel()

	got := FormatCSharp("for(int i = 0; i < n; i++) sum += i;")
	// The three-clause header stays on one line.
	assert.Contains(t, got, "for(int i = 0; i < n; i++)")
}

func TestFormatCSharp_StringLiteralsPreserved(t *testing.T) {
	t.Parallel()

	got := FormatCSharp(`var s   =   "a   b";`)
	assert.Contains(t, got, `"a   b"`)
	assert.Contains(t, got, "var s = ")

	// Escaped quote inside the literal does not end it.
	got = FormatCSharp(`log("say \"hi\"   there",   x);`)
	assert.Contains(t, got, `\"hi\"   there`)
}

func TestFormatCSharp_CatchFinallyOwnLines(t *testing.T) {
	t.Parallel()

	got := FormatCSharp("try{a();}catch(Exception e){b();}finally{c();}")
	lines := strings.Split(got, "\n")
	assert.Contains(t, lines, "catch(Exception e){")
	assert.Contains(t, lines, "finally")
}

func TestFormatCSharp_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FormatCSharp(""))
	assert.Equal(t, "", FormatCSharp("   \n  "))
}
