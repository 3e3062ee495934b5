package listing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLegacyUnix(t *testing.T) {
	input := strings.Join([]string{
		"total 12",
		"drwxr-xr-x   2 ftp  ftp      4096 Mar 01  2020 pub",
		"-rw-r--r--   1 ftp  ftp        10 Jan 15 10:30 a.txt",
		"lrwxrwxrwx   1 ftp  ftp         5 Jan 15 10:30 latest -> a.txt",
	}, "\r\n")

	entries, err := DecodeLegacy(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "pub", entries[0].Name)
	assert.Equal(t, KindDir, entries[0].Kind)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), entries[0].Modified)

	assert.Equal(t, "a.txt", entries[1].Name)
	assert.Equal(t, KindFile, entries[1].Kind)
	assert.Equal(t, int64(10), entries[1].Size)
	assert.Equal(t, time.January, entries[1].Modified.Month())
	assert.Equal(t, 15, entries[1].Modified.Day())

	assert.Equal(t, "latest", entries[2].Name)
	assert.Equal(t, KindLink, entries[2].Kind)
	assert.Equal(t, "a.txt", entries[2].Target)
}

func TestDecodeLegacyUnixNoGroup(t *testing.T) {
	input := "-rw-r--r--   1 ftp       512 Jan 15 10:30 nogroup.txt"

	entries, err := DecodeLegacy(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "nogroup.txt", entries[0].Name)
	assert.Equal(t, int64(512), entries[0].Size)
}

func TestDecodeLegacyUnixNameWithSpaces(t *testing.T) {
	input := "-rw-r--r--   1 ftp  ftp        10 Jan 15 10:30 name with spaces.txt"

	entries, err := DecodeLegacy(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "name with spaces.txt", entries[0].Name)
}

func TestDecodeLegacyDOS(t *testing.T) {
	input := strings.Join([]string{
		"03-15-21  02:30PM       <DIR>          docs",
		"03-15-21  02:31PM                 1024 readme.txt",
	}, "\r\n")

	entries, err := DecodeLegacy(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "docs", entries[0].Name)
	assert.Equal(t, KindDir, entries[0].Kind)
	assert.Equal(t, int64(-1), entries[0].Size)

	assert.Equal(t, "readme.txt", entries[1].Name)
	assert.Equal(t, KindFile, entries[1].Kind)
	assert.Equal(t, int64(1024), entries[1].Size)
	assert.Equal(t, time.Date(2021, 3, 15, 14, 31, 0, 0, time.UTC), entries[1].Modified)
}

func TestDecodeLegacyEPLF(t *testing.T) {
	input := strings.Join([]string{
		"+i8388621.48594,m825718503,r,s280,\tdjb.html",
		"+i8388625.48598,m824255907,/,\t514",
	}, "\r\n")

	entries, err := DecodeLegacy(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "djb.html", entries[0].Name)
	assert.Equal(t, KindFile, entries[0].Kind)
	assert.Equal(t, int64(280), entries[0].Size)
	assert.Equal(t, time.Unix(825718503, 0).UTC(), entries[0].Modified)

	assert.Equal(t, "514", entries[1].Name)
	assert.Equal(t, KindDir, entries[1].Kind)
}

func TestDecodeLegacyBareNames(t *testing.T) {
	input := "a.txt\r\nb.txt\r\nsubdir\r\n"

	entries, err := DecodeLegacy(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, KindUnknown, entries[0].Kind)
}

func TestDecodeLegacyEmpty(t *testing.T) {
	entries, err := DecodeLegacy(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDecodeLegacyPreservesOrder(t *testing.T) {
	input := strings.Join([]string{
		"-rw-r--r-- 1 ftp ftp 1 Jan 01 00:01 z.txt",
		"-rw-r--r-- 1 ftp ftp 1 Jan 01 00:01 a.txt",
		"-rw-r--r-- 1 ftp ftp 1 Jan 01 00:01 m.txt",
	}, "\n")

	entries, err := DecodeLegacy(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "z.txt", entries[0].Name)
	assert.Equal(t, "a.txt", entries[1].Name)
	assert.Equal(t, "m.txt", entries[2].Name)
}
