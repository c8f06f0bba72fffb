package command

import (
	"testing"

	"github.com/raftfs/raftfs/internal/status"
	"github.com/stretchr/testify/require"
)

func TestRoundTripSimpleKinds(t *testing.T) {
	cases := []Command{
		{Kind: CreateFile, Path: "a/b.txt"},
		{Kind: WriteFile, Path: "a/b.txt", Payload: []byte("hello")},
		{Kind: AppendFile, Path: "a/b.txt", Payload: []byte("world")},
		{Kind: DeleteFile, Path: "a/b.txt"},
		{Kind: CreateDir, Path: "a"},
		{Kind: DeleteDir, Path: "a"},
		{Kind: ReadFile, Path: "a/b.txt"},
		{Kind: ListDir, Path: "a"},
		{Kind: Stat, Path: "a"},
		{Kind: Exists, Path: "a"},
	}
	for _, c := range cases {
		encoded := Encode(c)
		decoded, err := Decode(encoded)
		require.Nil(t, err, c.Kind)
		require.Equal(t, c.Kind, decoded.Kind)
		require.Equal(t, c.Path, decoded.Path)
		if len(c.Payload) == 0 {
			require.Empty(t, decoded.Payload)
		} else {
			require.Equal(t, c.Payload, decoded.Payload)
		}
	}
}

func TestRoundTripRename(t *testing.T) {
	c := Command{Kind: Rename, Path: "a", NewPath: "b"}
	encoded := Encode(c)
	decoded, err := Decode(encoded)
	require.Nil(t, err)
	require.Equal(t, Rename, decoded.Kind)
	require.Equal(t, "a", decoded.Path)
	require.Equal(t, "b", decoded.NewPath)
}

func TestEmptyPayloadRoundTrips(t *testing.T) {
	c := Command{Kind: WriteFile, Path: "a", Payload: []byte{}}
	decoded, err := Decode(Encode(c))
	require.Nil(t, err)
	require.Len(t, decoded.Payload, 0)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.NotNil(t, err)
	require.Equal(t, status.SerializationError, err.Code)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	buf := Encode(Command{Kind: CreateFile, Path: "a"})
	buf[0] = 250
	_, err := Decode(buf)
	require.NotNil(t, err)
	require.Equal(t, status.SerializationError, err.Code)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	buf := Encode(Command{Kind: CreateFile, Path: "a"})
	buf = append(buf, 0xFF)
	_, err := Decode(buf)
	require.NotNil(t, err)
	require.Equal(t, status.SerializationError, err.Code)
}

func TestDecodeRejectsTruncatedPath(t *testing.T) {
	buf := Encode(Command{Kind: CreateFile, Path: "abcdef"})
	_, err := Decode(buf[:6])
	require.NotNil(t, err)
	require.Equal(t, status.SerializationError, err.Code)
}

func TestKindClassification(t *testing.T) {
	require.True(t, CreateFile.IsWrite())
	require.False(t, CreateFile.IsRead())
	require.True(t, Rename.IsWrite())
	require.True(t, ReadFile.IsRead())
	require.True(t, Exists.IsRead())
	require.False(t, ReadFile.IsWrite())
}
