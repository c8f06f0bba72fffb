package pathguard

import (
	"strings"
	"testing"

	"github.com/raftfs/raftfs/internal/status"
	"github.com/stretchr/testify/require"
)

func TestValidateAccepts(t *testing.T) {
	cases := []string{"a", "a/b/c", "a//b", "a/./b", "a/b/"}
	for _, c := range cases {
		require.Nil(t, Validate(c, false), c)
	}
}

func TestValidateRejectsTraversal(t *testing.T) {
	cases := []string{"../a", "a/../b", "..", "a/.."}
	for _, c := range cases {
		err := Validate(c, false)
		require.NotNil(t, err, c)
		require.Equal(t, status.InvalidPath, err.Code)
	}
}

func TestValidateRejectsLeadingSlash(t *testing.T) {
	err := Validate("/a/b", false)
	require.NotNil(t, err)
	require.Equal(t, status.InvalidPath, err.Code)
}

func TestValidateRejectsNUL(t *testing.T) {
	err := Validate("a/\x00b", false)
	require.NotNil(t, err)
	require.Equal(t, status.InvalidPath, err.Code)
}

func TestValidateEmpty(t *testing.T) {
	require.NotNil(t, Validate("", false))
	require.Nil(t, Validate("", true))
}

func TestValidateMaxLength(t *testing.T) {
	long := strings.Repeat("a", MaxPathBytes+1)
	err := Validate(long, false)
	require.NotNil(t, err)
	require.Equal(t, status.InvalidPath, err.Code)
}

func TestNormalizeCollapsesSeparators(t *testing.T) {
	require.Equal(t, "a/b/c", Normalize("a//b///c"))
	require.Equal(t, "a/b", Normalize("a/b/"))
	require.Equal(t, "a/b", Normalize("a/./b"))
	require.Equal(t, "", Normalize(""))
}

func TestResolveStaysUnderBase(t *testing.T) {
	require.Equal(t, "/base/a/b", Resolve("/base", "a/b"))
	require.Equal(t, "/base", Resolve("/base", ""))
}
