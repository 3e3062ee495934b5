package listing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMachine(t *testing.T) {
	input := "type=file;size=10;modify=20200101000000; a.txt\r\n"

	entries, err := DecodeMachine(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "a.txt", entry.Name)
	assert.Equal(t, KindFile, entry.Kind)
	assert.Equal(t, int64(10), entry.Size)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), entry.Modified)
}

func TestDecodeMachineKinds(t *testing.T) {
	input := strings.Join([]string{
		"type=dir; pub",
		"type=cdir; .",
		"type=pdir; ..",
		"type=OS.unix=slink:/target; linkname",
		"type=weird; oddball",
		"size=5; untyped",
	}, "\r\n")

	entries, err := DecodeMachine(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, entries, 6)

	assert.Equal(t, KindDir, entries[0].Kind)
	assert.Equal(t, KindDir, entries[1].Kind)
	assert.Equal(t, KindDir, entries[2].Kind)
	assert.Equal(t, KindLink, entries[3].Kind)
	assert.Equal(t, KindUnknown, entries[4].Kind)
	assert.Equal(t, KindUnknown, entries[5].Kind)
	assert.Equal(t, int64(5), entries[5].Size)
}

func TestDecodeMachineUnknownFactsKept(t *testing.T) {
	input := "type=file;size=3;UNIX.mode=0644;perm=r; b.txt"

	entries, err := DecodeMachine(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, map[string]string{"unix.mode": "0644", "perm": "r"}, entries[0].Facts)
}

func TestDecodeMachineNameWithSpaces(t *testing.T) {
	input := "type=file;size=1; name with spaces.txt"

	entries, err := DecodeMachine(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "name with spaces.txt", entries[0].Name)
}

func TestDecodeMachineLenientSkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		"type=file;size=1; good.txt",
		"nofactsnoseparator",
		"type=file;badfact; alsobad.txt",
		"type=file;size=2; good2.txt",
	}, "\r\n")

	entries, err := DecodeMachine(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "good.txt", entries[0].Name)
	assert.Equal(t, "good2.txt", entries[1].Name)
}

func TestDecodeMachineStrictFailsOnMalformed(t *testing.T) {
	input := "type=file;badfact; a.txt"

	_, err := DecodeMachine(strings.NewReader(input), true)
	require.Error(t, err)
}

func TestDecodeMachineNoSizeFact(t *testing.T) {
	entries, err := DecodeMachine(strings.NewReader("type=dir; pub"), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-1), entries[0].Size)
	assert.True(t, entries[0].Modified.IsZero())
}

func TestDecodeMachineModifyFractionalSeconds(t *testing.T) {
	entries, err := DecodeMachine(strings.NewReader("type=file;modify=20230615120000.123; c.txt"), false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC), entries[0].Modified)
}
