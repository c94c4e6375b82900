package codetext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for ScanFindings:
// - Each flag fires on a representative signal and stays false otherwise
// - The credential pattern matches assignment-style secrets
// - URLs are deduplicated, sorted, and capped at 50
// - Empty input yields all-false findings and no URLs

func TestScanFindings_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		code  string
		check func(t *testing.T, f Findings)
	}{
		{"sql", "cmd = \"SELECT * FROM users\"", func(t *testing.T, f Findings) {
			assert.True(t, f.HasSQLKeywords)
		}},
		{"http", "Dim client As New HttpClient()", func(t *testing.T, f Findings) {
			assert.True(t, f.HasHTTP)
		}},
		{"file io", "Dim r As New StreamReader(path)", func(t *testing.T, f Findings) {
			assert.True(t, f.HasFileIO)
		}},
		{"crypto", "Using aes = Aes.Create()", func(t *testing.T, f Findings) {
			assert.True(t, f.HasCrypto)
		}},
		{"reflection", "obj.GetType().Name", func(t *testing.T, f Findings) {
			assert.True(t, f.HasReflection)
		}},
		{"process start", "Process.Start(\"cmd.exe\")", func(t *testing.T, f Findings) {
			assert.True(t, f.HasProcessStart)
		}},
		{"platform internals", "resourcepc connection lost", func(t *testing.T, f Findings) {
			assert.True(t, f.MentionsPlatformInternals)
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.check(t, ScanFindings(tt.code))
		})
	}
}

func TestScanFindings_HardcodedCredential(t *testing.T) {
	t.Parallel()

	assert.True(t, ScanFindings(`password = "abc123"`).HasHardcodedCredential)
	assert.True(t, ScanFindings(`Dim apiKey = cfg.ApiKey`).HasHardcodedCredential)
	assert.False(t, ScanFindings("x = y + 1").HasHardcodedCredential)
}

func TestScanFindings_URLDedup(t *testing.T) {
	t.Parallel()

	f := ScanFindings("call https://example.com/a then https://example.com/a again, also http://b.test")
	assert.Equal(t, []string{"http://b.test", "https://example.com/a"}, f.URLs)
}

func TestScanFindings_Empty(t *testing.T) {
	t.Parallel()

	f := ScanFindings("")
	assert.False(t, f.HasSQLKeywords)
	assert.False(t, f.HasHTTP)
	assert.False(t, f.HasFileIO)
	assert.False(t, f.HasCrypto)
	assert.False(t, f.HasReflection)
	assert.False(t, f.HasProcessStart)
	assert.False(t, f.HasHardcodedCredential)
	assert.False(t, f.MentionsPlatformInternals)
	assert.Empty(t, f.URLs)
}
