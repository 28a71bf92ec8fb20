package container

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DecompressPool manages reusable zstd decoders for zstd-compressed members.
type DecompressPool struct {
	pool             *sync.Pool
	maxDecoderMemory uint64
	lowmem           bool
}

// NewDecompressPool creates a new pool for zstd decoders.
// If maxMemory is 0, no memory limit is applied to decoders.
func NewDecompressPool(maxMemory uint64, lowmem bool) *DecompressPool {
	p := &DecompressPool{
		maxDecoderMemory: maxMemory,
		lowmem:           lowmem,
	}
	p.pool = &sync.Pool{
		New: func() any {
			dec, err := p.newDecoder(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return p
}

// Get returns a decoder configured to read from r.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (p *DecompressPool) Get(r io.Reader) (*zstd.Decoder, func(), error) {
	dec, ok := p.pool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		// Pool's New function failed, try directly
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	if err := dec.Reset(r); err != nil {
		dec.Close()
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

// Decompressor returns a zip decompressor backed by the pool.
//
// The returned function matches the container's decompressor signature and
// returns the decoder to the pool when the member reader is closed.
func (p *DecompressPool) Decompressor() func(io.Reader) io.ReadCloser {
	return func(r io.Reader) io.ReadCloser {
		dec, release, err := p.Get(r)
		if err != nil {
			return &errReader{err: err}
		}
		return &pooledReader{dec: dec, release: release}
	}
}

func (p *DecompressPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(p.lowmem),
	}
	if p.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
	}
	return zstd.NewReader(r, opts...)
}

type pooledReader struct {
	dec     *zstd.Decoder
	release func()
}

func (r *pooledReader) Read(p []byte) (int, error) {
	if r.dec == nil {
		return 0, io.ErrClosedPipe
	}
	return r.dec.Read(p)
}

func (r *pooledReader) Close() error {
	if r.release != nil {
		r.release()
		r.release = nil
		r.dec = nil
	}
	return nil
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) { return 0, r.err }
func (r *errReader) Close() error             { return nil }
