package codetext

import (
	"regexp"
	"sort"
	"strings"
)

// Findings is the fixed taxonomy of lexical risk signals for one code
// fragment. The scan is substring/pattern matching over lower-cased
// normalized code: false positives and negatives are expected and
// acceptable, it is a triage aid, not a semantic analysis.
type Findings struct {
	HasSQLKeywords            bool     `json:"has_sql_keywords"`
	HasHTTP                   bool     `json:"has_http"`
	HasFileIO                 bool     `json:"has_file_io"`
	HasCrypto                 bool     `json:"has_crypto"`
	HasReflection             bool     `json:"has_reflection"`
	HasProcessStart           bool     `json:"has_process_start"`
	HasHardcodedCredential    bool     `json:"has_hardcoded_credential_like"`
	MentionsPlatformInternals bool     `json:"mentions_platform_internals"`
	URLs                      []string `json:"urls"`
}

// maxURLs caps the deduplicated URL list per fragment.
const maxURLs = 50

var (
	credentialPattern = regexp.MustCompile(`(password\s*=|pwd\s*=|apikey|api_key|token\s*=|bearer\s+)`)
	urlPattern        = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

var (
	sqlSignals        = []string{"select ", "insert ", "update ", "delete ", "exec ", "sp_", "merge "}
	httpSignals       = []string{"http://", "https://", "webrequest", "httpclient", "restsharp"}
	fileIOSignals     = []string{"filesystem", "file.", "directory.", "streamreader", "streamwriter"}
	cryptoSignals     = []string{"sha", "md5", "aes", "rsa", "cryptography", "rijndael"}
	reflectionSignals = []string{"reflection", "gettype(", "activator.createinstance"}
	processSignals    = []string{"process.start", "shell(", "wscript.shell"}
	platformSignals   = []string{"blueprism", "automate", "session", "resourcepc"}
)

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// ScanFindings performs the stateless lexical scan over normalized code.
func ScanFindings(code string) Findings {
	lower := strings.ToLower(code)

	f := Findings{
		HasSQLKeywords:            containsAny(lower, sqlSignals),
		HasHTTP:                   containsAny(lower, httpSignals),
		HasFileIO:                 containsAny(lower, fileIOSignals),
		HasCrypto:                 containsAny(lower, cryptoSignals),
		HasReflection:             containsAny(lower, reflectionSignals),
		HasProcessStart:           containsAny(lower, processSignals),
		HasHardcodedCredential:    credentialPattern.MatchString(lower),
		MentionsPlatformInternals: containsAny(lower, platformSignals),
	}

	seen := make(map[string]bool)
	for _, u := range urlPattern.FindAllString(code, -1) {
		seen[u] = true
	}
	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	if len(urls) > maxURLs {
		urls = urls[:maxURLs]
	}
	f.URLs = urls

	return f
}
