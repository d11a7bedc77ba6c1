package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRead(t *testing.T, s string) *Table {
	t.Helper()
	tbl, err := Read(strings.NewReader(s))
	require.NoError(t, err)
	return tbl
}

func encode(t *testing.T, tbl *Table) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tbl.Encode(&buf))
	return buf.String()
}

func TestReadTrimsBOMAndPadsShortRows(t *testing.T) {
	tbl := mustRead(t, "\xEF\xBB\xBFSeason,AccountNumber,Game\n2024,17,G1\n2024,18\n\n")

	assert.Equal(t, []string{"Season", "AccountNumber", "Game"}, tbl.Headers)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "G1", tbl.Rows[0]["Game"])
	assert.Equal(t, "", tbl.Rows[1]["Game"])
}

func TestReadKeepsBareQuotesInsideFields(t *testing.T) {
	tbl := mustRead(t, "Game,Giveaway\nG1,12\" Bobblehead\nG2,\"Cap, \"\"Bucket\"\"\"\n")

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, `12" Bobblehead`, tbl.Rows[0]["Giveaway"])
	assert.Equal(t, `Cap, "Bucket"`, tbl.Rows[1]["Giveaway"])
}

func TestReadRejectsDuplicateAndMissingHeader(t *testing.T) {
	_, err := Read(strings.NewReader("A,B,A\n1,2,3\n"))
	var fe *InputFormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "A", fe.Column)

	_, err = Read(strings.NewReader(""))
	require.True(t, errors.As(err, &fe))
}

func TestEncodeQuotesOnlyWhenNeeded(t *testing.T) {
	tbl := New([]string{"Game", "Giveaway"})
	tbl.AppendRecord([]string{"G1", `Cap, "Bucket"`})
	tbl.AppendRecord([]string{"G2", "Bag"})

	assert.Equal(t, "Game,Giveaway\nG1,\"Cap, \"\"Bucket\"\"\"\nG2,Bag\n", encode(t, tbl))
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "t.csv")
	tbl := New([]string{"A Games", "A + Weekend + Promo"})
	tbl.AppendRecord([]string{"2", "1"})
	require.NoError(t, tbl.Write(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A Games,A + Weekend + Promo\n2,1\n", string(b))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tbl.Headers, back.Headers)
	assert.Equal(t, tbl.Rows, back.Rows)
}

func TestColumnEditing(t *testing.T) {
	tbl := mustRead(t, "a,b,c\n1,2,3\n")

	tbl.AddColumn("d")
	tbl.AddColumn("a")
	assert.Equal(t, []string{"a", "b", "c", "d"}, tbl.Headers)

	tbl.MoveToFront("c")
	assert.Equal(t, []string{"c", "a", "b", "d"}, tbl.Headers)

	tbl.DropColumn("a")
	assert.Equal(t, []string{"c", "b", "d"}, tbl.Headers)
	_, ok := tbl.Rows[0]["a"]
	assert.False(t, ok)

	assert.Equal(t, []string{"d"}, tbl.Missing("b", "d"))
	var fe *InputFormatError
	require.True(t, errors.As(tbl.Require("b", "zz"), &fe))
	assert.Equal(t, "zz", fe.Column)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2", "10", -1},
		{"10", "2", 1},
		{"10", "10", 0},
		{"9.5", "10", -1},
		{"10", "abc", -1},
		{"abc", "abd", -1},
		{"", "1", 1},
		{"1", "", -1},
		{" 7", "7", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.a, tt.b), "Compare(%q, %q)", tt.a, tt.b)
	}
}

func TestSortByIsNumericAndStable(t *testing.T) {
	tbl := mustRead(t, "AccountNumber,Tag\n10,x\n2,y\n10,z\n1,w\n")
	require.NoError(t, tbl.SortBy("AccountNumber"))
	assert.Equal(t, []string{"1", "2", "10", "10"}, tbl.Column("AccountNumber"))
	assert.Equal(t, []string{"w", "y", "x", "z"}, tbl.Column("Tag"))

	assert.Error(t, tbl.SortBy("Missing"))
}

func TestDiffKeepsRowsInExactlyOneTable(t *testing.T) {
	left := mustRead(t, "AccountNumber,STM\n3,1\n1,0\n2,1\n")
	right := mustRead(t, "AccountNumber,STM,FanSegment\n2,1,Core\n4,0,New\n1,1,Casual\n")

	out, res, err := Diff(left, right)
	require.NoError(t, err)

	assert.Equal(t, []string{"AccountNumber", "STM"}, res.Shared)
	assert.Equal(t, []string{"AccountNumber", "STM", "FanSegment"}, out.Headers)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 2, res.LeftOnly)
	assert.Equal(t, 2, res.RightOnly)
	assert.Equal(t, "AccountNumber,STM,FanSegment\n1,0,\n1,1,Casual\n3,1,\n4,0,New\n", encode(t, out))
}

func TestDiffMatchesNumbersByValue(t *testing.T) {
	left := mustRead(t, "AccountNumber,AvgSpend\n100,25\n101,30\n")
	right := mustRead(t, "AccountNumber,AvgSpend\n100.0,25.00\n102,30\n")

	out, res, err := Diff(left, right)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, []string{"101", "102"}, out.Column("AccountNumber"))
}

func TestDiffRequiresSharedColumns(t *testing.T) {
	_, _, err := Diff(mustRead(t, "a\n1\n"), mustRead(t, "b\n1\n"))
	var fe *InputFormatError
	assert.True(t, errors.As(err, &fe))
}

func TestUpdateColumns(t *testing.T) {
	dst := mustRead(t, "Season,AccountNumber,STM,AvgSpend\n2024,1,0,0\n2024,2,0,0\n2024,3,0,0\n")
	src := mustRead(t, "AccountNumber,STM,AvgSpend,FanSegment\n2,1,$120.50,Core\n1,0,$15,\n")

	res, err := UpdateColumns(dst, src, "AccountNumber", []string{"STM", "AvgSpend", "FanSegment", "DistanceToArena"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Unmatched)
	assert.Equal(t, []string{"DistanceToArena"}, res.MissingColumns)
	assert.Equal(t, []string{"AccountNumber", "Season", "STM", "AvgSpend", "FanSegment"}, dst.Headers)
	assert.Equal(t, "AccountNumber,Season,STM,AvgSpend,FanSegment\n1,2024,0,$15,\n2,2024,1,$120.50,Core\n3,2024,0,0,\n", encode(t, dst))
}

func TestUpdateColumnsRequiresKey(t *testing.T) {
	_, err := UpdateColumns(mustRead(t, "a\n1\n"), mustRead(t, "AccountNumber\n1\n"), "AccountNumber", nil)
	var fe *InputFormatError
	assert.True(t, errors.As(err, &fe))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `input format: column "Game": missing column`, (&InputFormatError{Column: "Game", Reason: "missing column"}).Error())
	assert.Equal(t, `input format: row 3 column "GameTier": invalid tier ("E")`,
		(&InputFormatError{Line: 3, Column: "GameTier", Value: "E", Reason: "invalid tier"}).Error())
	assert.Contains(t, (&JoinMismatchError{Line: 2, Game: "G9"}).Error(), `"G9"`)
	assert.Equal(t, "empty input: seats.csv has no records", (&EmptyInputError{Source: "seats.csv"}).Error())
}
