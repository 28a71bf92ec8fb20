package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/meigma/arcimport/archive"
	"github.com/meigma/arcimport/codec"
	"github.com/meigma/arcimport/internal/testutil"
)

// benchSource defines enough functions to make compilation measurable.
func benchSource(n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "def f%d(x):\n    return [x + %d for _ in range(3)]\n", i, i)
	}
	sb.WriteString("RESULT = f0(1)\n")
	return sb.String()
}

func BenchmarkLoad(b *testing.B) {
	src := benchSource(200)
	prog, err := SourceDecoder{}.Decode([]byte(src), "bench.star")
	if err != nil {
		b.Fatal(err)
	}
	var buf bytes.Buffer
	if err := codec.Encode(&buf, prog, codec.Current); err != nil {
		b.Fatal(err)
	}

	cases := []struct {
		name  string
		files map[string][]byte
	}{
		{name: "form=source", files: map[string][]byte{"bench.star": []byte(src)}},
		{name: "form=precompiled", files: map[string][]byte{"bench.starc": buf.Bytes()}},
		{name: "form=package", files: map[string][]byte{"bench/__init__.star": []byte(src)}},
	}

	for _, bc := range cases {
		data := testutil.BuildZip(b, bc.files)

		b.Run(bc.name, func(b *testing.B) {
			a, err := archive.New(bytes.NewReader(data), int64(len(data)), "bench.zip")
			if err != nil {
				b.Fatal(err)
			}
			defer a.Close()
			l := New(a)

			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				resolved, spec, err := l.Resolve("bench")
				if err != nil {
					b.Fatal(err)
				}
				if err := l.Materialize(context.Background(), nil, resolved, l.NewRecord(spec, resolved)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
