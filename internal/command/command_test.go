package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEachKind(t *testing.T) {
	cases := []struct {
		args []string
		want Command
	}{
		{[]string{"init"}, Command{Kind: Init}},
		{[]string{"create", "dir1", "f"}, Command{Kind: Create, Path: "dir1", Name: "f"}},
		{[]string{"delete", "dir1", "f"}, Command{Kind: Delete, Path: "dir1", Name: "f"}},
		{[]string{"info", "dir1", "f"}, Command{Kind: Info, Path: "dir1", Name: "f"}},
		{[]string{"copy", "dir1", "f", "dir2"}, Command{Kind: Copy, Path: "dir1", Name: "f", NewPath: "dir2"}},
		{[]string{"copy", "dir1", "f", "dir2", "g"}, Command{Kind: Copy, Path: "dir1", Name: "f", NewPath: "dir2", NewFilename: "g"}},
		{[]string{"move", "dir1", "f", "dir2", "g"}, Command{Kind: Move, Path: "dir1", Name: "f", NewPath: "dir2", NewFilename: "g"}},
		{[]string{"readdir", "dir1"}, Command{Kind: ReadDir, Path: "dir1"}},
		{[]string{"makedir", "dir1", "a"}, Command{Kind: MakeDir, Path: "dir1", Name: "a"}},
		{[]string{"deletedir", "dir1", "a"}, Command{Kind: DeleteDir, Path: "dir1", Name: "a"}},
		{[]string{"read", "dir1", "f"}, Command{Kind: Read, Path: "dir1", Name: "f"}},
		{[]string{"write", "dir1", "f"}, Command{Kind: Write, Path: "dir1", Name: "f"}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.args)
		require.NoError(t, err, tc.args)
		assert.Equal(t, tc.want, got, tc.args)
	}
}

func TestParseUnknownOp(t *testing.T) {
	_, err := Parse([]string{"frobnicate", "a"})
	var unknown ErrUnknownOp
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "frobnicate", unknown.Op)
}

func TestParseWrongArity(t *testing.T) {
	_, err := Parse([]string{"create", "dir1"})
	var arityErr ErrWrongArity
	require.ErrorAs(t, err, &arityErr)
	assert.Equal(t, "create", arityErr.Op)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)
}
