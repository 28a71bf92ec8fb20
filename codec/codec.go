// Package codec reads and writes precompiled module entries.
//
// A precompiled entry is a fixed-size header followed by a serialized
// Starlark program. Two header revisions exist:
//
//	legacy  (8 bytes):  magic[4] | mtime[4]
//	current (12 bytes): magic[4] | flags[4] | mtime[4]
//
// Integers are little endian. Decode does not trust the magic number to
// tell the revisions apart; it tries the payload at both offsets.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.starlark.net/starlark"
)

// Magic opens every precompiled entry written by Encode.
var Magic = [4]byte{'a', 'r', 'c', 0x0d}

// Revision selects a header layout.
type Revision int

const (
	// Legacy is the 8-byte header.
	Legacy Revision = iota
	// Current is the 12-byte header.
	Current
)

// Size returns the header length in bytes.
func (r Revision) Size() int {
	if r == Legacy {
		return 8
	}
	return 12
}

func (r Revision) String() string {
	if r == Legacy {
		return "legacy"
	}
	return "current"
}

// offsets are the payload offsets Decode tries, in order.
var offsets = []Revision{Legacy, Current}

// ErrBadBytecode is returned when no header offset yields a program.
var ErrBadBytecode = errors.New("codec: bad bytecode")

// Header is the metadata preceding the program payload.
type Header struct {
	Revision Revision
	Flags    uint32
	ModTime  time.Time
}

// Encode writes prog to w behind a header of the given revision.
// The header records no modification time, so output is reproducible.
func Encode(w io.Writer, prog *starlark.Program, rev Revision) error {
	return EncodeHeader(w, prog, Header{Revision: rev})
}

// EncodeHeader writes prog to w behind h.
func EncodeHeader(w io.Writer, prog *starlark.Program, h Header) error {
	if prog == nil {
		return errors.New("codec: nil program")
	}
	if _, err := w.Write(h.bytes()); err != nil {
		return fmt.Errorf("codec: write header: %w", err)
	}
	if err := prog.Write(w); err != nil {
		return fmt.Errorf("codec: write program: %w", err)
	}
	return nil
}

func (h Header) bytes() []byte {
	buf := make([]byte, h.Revision.Size())
	copy(buf, Magic[:])
	var mtime uint32
	if !h.ModTime.IsZero() {
		mtime = uint32(h.ModTime.Unix()) //nolint:gosec // header field is 32 bits wide
	}
	if h.Revision == Legacy {
		binary.LittleEndian.PutUint32(buf[4:], mtime)
		return buf
	}
	binary.LittleEndian.PutUint32(buf[4:], h.Flags)
	binary.LittleEndian.PutUint32(buf[8:], mtime)
	return buf
}

// Decode returns the program stored in data.
//
// The payload is tried after an 8-byte header and then after a 12-byte
// header; the first that deserializes wins. When both fail the error
// matches ErrBadBytecode and describes each attempt, telling a buffer too
// short for the header apart from a payload that could not be read.
func Decode(data []byte) (*starlark.Program, error) {
	var attempts *multierror.Error
	for _, rev := range offsets {
		size := rev.Size()
		if len(data) < size {
			attempts = multierror.Append(attempts,
				fmt.Errorf("%s header: short buffer (%d of %d bytes)", rev, len(data), size))
			continue
		}
		prog, err := decodePayload(data[size:])
		if err == nil {
			return prog, nil
		}
		attempts = multierror.Append(attempts, fmt.Errorf("%s header: unreadable payload: %w", rev, err))
	}
	attempts.ErrorFormat = inlineFormat
	return nil, fmt.Errorf("%w: %w", ErrBadBytecode, attempts)
}

// decodePayload deserializes one program. The Starlark decoder may panic
// on truncated input, so panics are returned as errors.
func decodePayload(payload []byte) (prog *starlark.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			prog = nil
			err = fmt.Errorf("corrupt program: %v", r)
		}
	}()
	return starlark.CompiledProgram(bytes.NewReader(payload))
}

// ParseHeader reports which header revision data carries, judged by
// which offset holds a readable program. It is meant for diagnostics.
func ParseHeader(data []byte) (Header, error) {
	for _, rev := range offsets {
		size := rev.Size()
		if len(data) < size {
			continue
		}
		if _, err := decodePayload(data[size:]); err != nil {
			continue
		}
		h := Header{Revision: rev}
		mtime := binary.LittleEndian.Uint32(data[size-4 : size])
		if rev == Current {
			h.Flags = binary.LittleEndian.Uint32(data[4:8])
		}
		if mtime != 0 {
			h.ModTime = time.Unix(int64(mtime), 0).UTC()
		}
		return h, nil
	}
	return Header{}, ErrBadBytecode
}

func inlineFormat(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
