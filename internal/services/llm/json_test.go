package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject_BareObject(t *testing.T) {
	out, err := extractJSONObject(`{"name":"Jane"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Jane"}`, out)
}

func TestExtractJSONObject_SurroundingProse(t *testing.T) {
	input := "Sure! Here is the extraction:\n{\"name\":\"Jane\",\"skills\":[\"Go\"]}\nLet me know if you need more."
	out, err := extractJSONObject(input)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Jane","skills":["Go"]}`, out)
}

func TestExtractJSONObject_MarkdownFences(t *testing.T) {
	input := "```json\n{\"matchScore\": 82}\n```"
	out, err := extractJSONObject(input)
	require.NoError(t, err)
	assert.Equal(t, `{"matchScore": 82}`, out)
}

func TestExtractJSONObject_NestedObjects(t *testing.T) {
	input := `prefix {"outer": {"inner": {"deep": 1}}, "b": 2} suffix`
	out, err := extractJSONObject(input)
	require.NoError(t, err)
	assert.Equal(t, `{"outer": {"inner": {"deep": 1}}, "b": 2}`, out)
}

func TestExtractJSONObject_BracesInsideStrings(t *testing.T) {
	input := `{"explanation": "uses {braces} and a quote \" inside", "score": 50}`
	out, err := extractJSONObject(input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestExtractJSONObject_FirstOfSeveral(t *testing.T) {
	out, err := extractJSONObject(`{"a":1} {"b":2}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	_, err := extractJSONObject("I could not process that resume.")
	require.Error(t, err)
}

func TestExtractJSONObject_Unbalanced(t *testing.T) {
	_, err := extractJSONObject(`{"name": "Jane"`)
	require.Error(t, err)
}
