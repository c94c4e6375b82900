package codetext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for language resolution:
// - Hint synonyms canonicalize case-insensitively to the two families
// - A usable hint wins regardless of content
// - Without a hint, VB signatures are checked before C# signatures
// - The coarse brace+semicolon heuristic only fires after VB signals miss
// - Unmatched content resolves to Unknown

func TestNormalizeLanguage_Synonyms(t *testing.T) {
	t.Parallel()

	for _, hint := range []string{"vb", "VB.NET", "VisualBasic", "visual basic", "VISUAL_BASIC"} {
		assert.Equal(t, LangVB, NormalizeLanguage(hint), "hint %q", hint)
	}
	for _, hint := range []string{"c#", "CSharp", "cs", "C Sharp"} {
		assert.Equal(t, LangCSharp, NormalizeLanguage(hint), "hint %q", hint)
	}
	assert.Equal(t, LangUnknown, NormalizeLanguage(""))
	assert.Equal(t, LangUnknown, NormalizeLanguage("python"))
}

func TestInferLanguage_HintWins(t *testing.T) {
	t.Parallel()

	// Hint overrides content that looks like the other family.
	assert.Equal(t, LangVB, InferLanguage("vb.net", "public class X { int a; }"))
	assert.Equal(t, LangCSharp, InferLanguage("csharp", "Dim x As Integer"))
}

func TestInferLanguage_FromContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code string
		want Language
	}{
		{"vb dim", "Dim x As Integer", LangVB},
		{"vb if then", "If count > 0 Then\nEnd If", LangVB},
		{"vb end sub", "  End Sub", LangVB},
		{"cs using", "using System;\nvar x = 1;", LangCSharp},
		{"cs access modifier", "public class X { }", LangCSharp},
		{"cs structural", "x = f(1); { y(); }", LangCSharp},
		{"unknown", "banana", LangUnknown},
		{"empty", "", LangUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, InferLanguage("", tt.code))
		})
	}
}

func TestInferLanguage_VBCheckedFirst(t *testing.T) {
	t.Parallel()

	// Braces, semicolons and a VB block keyword together: the VB
	// signature wins because the structural C# heuristic is coarse.
	code := "Dim s = \"{ }\"\nIf s <> \"\" Then x = 1;"
	assert.Equal(t, LangVB, InferLanguage("", code))
}

func TestLanguage_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, lang := range []Language{LangUnknown, LangVB, LangCSharp} {
		assert.Equal(t, lang, ParseLanguage(lang.String()))
	}
	assert.Equal(t, LangUnknown, ParseLanguage("Fortran"))
}
