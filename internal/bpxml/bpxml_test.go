package bpxml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Parse:
// - Version, subsheet names, stages, and resources are surfaced
// - Code stages carry their embedded text; stages without a code node
//   fall back to the stage XML itself
// - Language metadata resolves stage-first, then root
// - loginhibit and credential resources are detected
// - Process stages expose the called process id upper-cased
// - Malformed XML returns an error rather than a partial definition

const sampleDefinition = `<process name="Orders" bpversion="6.10.1" type="object">
  <language>VB</language>
  <subsheet subsheetid="sub-1" type="Normal">
    <name>Validate Input</name>
  </subsheet>
  <stage stageid="s1" name="Read Account" type="Code">
    <subsheetid>sub-1</subsheetid>
    <code>Dim x = 1 : y = 2</code>
  </stage>
  <stage stageid="s2" name="Call Child" type="Process">
    <processid>abc-def</processid>
  </stage>
  <stage stageid="s3" name="Fetch Secret" type="Action">
    <resource object="Blueprism.Automate.clsCredentialsActions" action="Get" />
    <loginhibit onsuccess="true" />
  </stage>
  <globalcode>Public Shared counter As Integer</globalcode>
</process>`

func TestParse_Definition(t *testing.T) {
	t.Parallel()

	def, err := Parse(sampleDefinition)
	require.NoError(t, err)

	assert.Equal(t, "6.10.1", def.Version)
	assert.Equal(t, "VB", def.LanguageHint)
	assert.Equal(t, "Public Shared counter As Integer", def.GlobalCode)
	assert.Equal(t, map[string]string{"sub-1": "Validate Input"}, def.SubsheetNames)
	require.Len(t, def.Stages, 3)
}

func TestParse_CodeStage(t *testing.T) {
	t.Parallel()

	def, err := Parse(sampleDefinition)
	require.NoError(t, err)

	code := def.Stages[0]
	assert.Equal(t, "s1", code.ID)
	assert.Equal(t, StageTypeCode, code.Type)
	assert.Equal(t, "Dim x = 1 : y = 2", code.CodeText)
	assert.Equal(t, "VB", code.LanguageHint) // inherited from root
	assert.Equal(t, "Validate Input", def.PageName(code))
}

func TestParse_ProcessAndResourceStages(t *testing.T) {
	t.Parallel()

	def, err := Parse(sampleDefinition)
	require.NoError(t, err)

	proc := def.Stages[1]
	assert.Equal(t, "ABC-DEF", proc.CalledID)
	assert.Equal(t, DefaultPageName, def.PageName(proc))

	cred := def.Stages[2]
	assert.Equal(t, CredentialsResourceObject, cred.Resource)
	assert.True(t, cred.LogInhibited)
	assert.Equal(t, LogErrorOnly, cred.LogMode)

	assert.Equal(t, []string{CredentialsResourceObject}, def.Resources)
}

func TestParse_CodeStageWithoutCodeNode(t *testing.T) {
	t.Parallel()

	def, err := Parse(`<process><stage stageid="s1" name="Odd" type="Code"><custom>payload</custom></stage></process>`)
	require.NoError(t, err)
	require.Len(t, def.Stages, 1)

	// No recognized code node: the stage XML itself is kept.
	assert.True(t, strings.HasPrefix(def.Stages[0].CodeText, "<stage"))
	assert.Contains(t, def.Stages[0].CodeText, "payload")
}

func TestParse_StageLanguageOverridesRoot(t *testing.T) {
	t.Parallel()

	def, err := Parse(`<process><language>VB</language><stage type="Code" name="x"><codelanguage>C#</codelanguage><code>a();</code></stage></process>`)
	require.NoError(t, err)
	require.Len(t, def.Stages, 1)
	assert.Equal(t, "C#", def.Stages[0].LanguageHint)
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Parse("<process><stage></process>")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}
