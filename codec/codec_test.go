package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

func compile(t *testing.T, src string) *starlark.Program {
	t.Helper()
	_, prog, err := starlark.SourceProgramOptions(&syntax.FileOptions{}, "mod.star", src, func(string) bool { return false })
	require.NoError(t, err)
	return prog
}

func encode(t *testing.T, prog *starlark.Program, rev Revision) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, prog, rev))
	return buf.Bytes()
}

func run(t *testing.T, prog *starlark.Program) starlark.StringDict {
	t.Helper()
	globals, err := prog.Init(&starlark.Thread{Name: "test"}, nil)
	require.NoError(t, err)
	return globals
}

func TestDecode_BothRevisions(t *testing.T) {
	t.Parallel()

	prog := compile(t, "X = 42\n")
	for _, rev := range []Revision{Legacy, Current} {
		t.Run(rev.String(), func(t *testing.T) {
			t.Parallel()

			data := encode(t, prog, rev)
			assert.Equal(t, Magic[:], data[:4])

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, starlark.MakeInt(42), run(t, got)["X"])

			h, err := ParseHeader(data)
			require.NoError(t, err)
			assert.Equal(t, rev, h.Revision)
		})
	}
}

func TestEncodeHeader_Fields(t *testing.T) {
	t.Parallel()

	prog := compile(t, "Y = 1\n")
	var buf bytes.Buffer
	mtime := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, EncodeHeader(&buf, prog, Header{Revision: Current, Flags: 3, ModTime: mtime}))

	h, err := ParseHeader(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, Header{Revision: Current, Flags: 3, ModTime: mtime}, h)
}

func TestDecode_Failures(t *testing.T) {
	t.Parallel()

	valid := encode(t, compile(t, "Z = 'z'\n"), Current)
	truncated := valid[:len(valid)/2]
	garbage := append(bytes.Repeat([]byte{0xff}, 12), []byte("not a program")...)

	tests := []struct {
		name    string
		data    []byte
		wantMsg string
	}{
		{name: "empty", data: nil, wantMsg: "short buffer"},
		{name: "header only", data: valid[:10], wantMsg: "short buffer"},
		{name: "garbage payload", data: garbage, wantMsg: "unreadable payload"},
		{name: "truncated payload", data: truncated, wantMsg: "unreadable payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			prog, err := Decode(tt.data)
			require.ErrorIs(t, err, ErrBadBytecode)
			assert.Nil(t, prog)
			assert.Contains(t, err.Error(), tt.wantMsg)

			_, err = ParseHeader(tt.data)
			require.ErrorIs(t, err, ErrBadBytecode)
		})
	}
}

func TestEncode_NilProgram(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.Error(t, Encode(&buf, nil, Current))
	assert.Zero(t, buf.Len())
}
