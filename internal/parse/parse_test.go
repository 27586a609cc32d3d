package parse_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/p-blackswan/colony/internal/errors"
	"github.com/p-blackswan/colony/internal/parse"
)

const sampleDoc = `## Summary
Something short.

## Execution Plan:
1. First step
2. Second step
`

func TestParseBlocks(t *testing.T) {
	blocks := parse.ParseBlocks(sampleDoc)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Something short.", blocks["Summary"])
	assert.Contains(t, blocks["Execution Plan"], "1. First step")
}

func TestExtractBlockMissing(t *testing.T) {
	_, err := parse.ExtractBlock(sampleDoc, "Design")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrNoMatch))
}

func TestExtractCode(t *testing.T) {
	text := "intro\n```go\npackage main\n```\ntrailer"
	code, err := parse.ExtractCode(text, "go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", code)
}

func TestExtractCodeAnyLang(t *testing.T) {
	text := "```python\nprint('x')\n```"
	code, err := parse.ExtractCode(text, "")
	require.NoError(t, err)
	assert.Equal(t, "print('x')\n", code)
}

func TestExtractCodeLangMismatch(t *testing.T) {
	text := "```python\nprint('x')\n```"
	_, err := parse.ExtractCode(text, "go")
	assert.True(t, errors.Is(err, cerrors.ErrNoMatch))
}

func TestExtractList(t *testing.T) {
	text := `Task list:
tasks = ["main.go", "util.go", 'config.go']`
	items, err := parse.ExtractList(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "util.go", "config.go"}, items)
}

func TestExtractListMissing(t *testing.T) {
	_, err := parse.ExtractList("no list here")
	assert.True(t, errors.Is(err, cerrors.ErrNoMatch))
}
