package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderLoader_ParsesTwoFieldLines(t *testing.T) {
	input := "mol1,1010\nmol2;0101\nmol3 1111\n"
	l := ReaderLoader{R: strings.NewReader(input)}
	recs, err := l.Load(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, Record{ID: "mol1", BitString: "1010"}, recs[0])
	assert.Equal(t, Record{ID: "mol2", BitString: "0101"}, recs[1])
	assert.Equal(t, Record{ID: "mol3", BitString: "1111"}, recs[2])
}

func TestReaderLoader_SingleFieldLinesGetSyntheticIDs(t *testing.T) {
	input := "1010\n0101\n"
	l := ReaderLoader{R: strings.NewReader(input)}
	recs, err := l.Load(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "000000000001", recs[0].ID)
	assert.Equal(t, "000000000002", recs[1].ID)
}

func TestReaderLoader_HandlesMixedLineTerminatorsAndSeparators(t *testing.T) {
	input := "a'1100\r\nb\"0011\x00c,1001"
	l := ReaderLoader{R: strings.NewReader(input)}
	recs, err := l.Load(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "1100", recs[0].BitString)
	assert.Equal(t, "0011", recs[1].BitString)
	assert.Equal(t, "1001", recs[2].BitString)
}

func TestReaderLoader_SkipsBlankLines(t *testing.T) {
	input := "a,1111\n\n\nb,0000\n"
	l := ReaderLoader{R: strings.NewReader(input)}
	recs, err := l.Load(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestReaderLoader_TruncatesOverlongBitStrings(t *testing.T) {
	input := "a," + strings.Repeat("1", 20)
	l := ReaderLoader{R: strings.NewReader(input), MaxBitStringLength: 8}
	recs, err := l.Load(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].BitString, 8)
}

func TestFileLoader_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pop.txt")
	require.NoError(t, os.WriteFile(path, []byte("x,1100\ny,0011\n"), 0o644))

	l := FileLoader{Path: path}
	recs, err := l.Load(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestFileLoader_MissingFileSurfacesUnreadableError(t *testing.T) {
	l := FileLoader{Path: "/nonexistent/path/does-not-exist.txt"}
	_, err := l.Load(context.Background(), 0)
	require.Error(t, err)
}

func TestStaticLoader_ReturnsRecordsUnchanged(t *testing.T) {
	want := []Record{{ID: "a", BitString: "1111"}}
	l := StaticLoader{Records: want}
	got, err := l.Load(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCountLines_CountsNonEmptyLinesOnly(t *testing.T) {
	n, err := CountLines(strings.NewReader("a\nb\n\nc\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
