package archive

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/meigma/arcimport/internal/testutil"
)

var benchReadBytes int

type benchReadCase struct {
	name      string
	fileCount int
	fileSize  int
	opts      []testutil.ZipOption
}

func BenchmarkReadFile(b *testing.B) {
	cases := []benchReadCase{
		{name: "files=256/size=4k/store", fileCount: 256, fileSize: 4 << 10, opts: []testutil.ZipOption{testutil.WithMethod(testutil.MethodStore)}},
		{name: "files=256/size=4k/deflate", fileCount: 256, fileSize: 4 << 10},
		{name: "files=256/size=4k/zstd", fileCount: 256, fileSize: 4 << 10, opts: []testutil.ZipOption{testutil.WithMethod(testutil.MethodZstd)}},
		{name: "files=256/size=4k/aes", fileCount: 256, fileSize: 4 << 10, opts: []testutil.ZipOption{testutil.WithPassword("bench")}},
	}

	for _, bc := range cases {
		data, paths, total := buildBenchArchive(b, bc)

		b.Run(bc.name, func(b *testing.B) {
			a, err := New(bytes.NewReader(data), int64(len(data)), "bench.zip", WithPassword("bench"))
			if err != nil {
				b.Fatal(err)
			}
			defer a.Close()

			b.SetBytes(total)
			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				for _, p := range paths {
					content, err := a.ReadFile(p)
					if err != nil {
						b.Fatal(err)
					}
					benchReadBytes += len(content)
				}
			}
		})
	}
}

func BenchmarkOpenIndex(b *testing.B) {
	for _, count := range []int{64, 1024} {
		data, _, _ := buildBenchArchive(b, benchReadCase{fileCount: count, fileSize: 64})

		b.Run(fmt.Sprintf("files=%d", count), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				a, err := New(bytes.NewReader(data), int64(len(data)), "bench.zip")
				if err != nil {
					b.Fatal(err)
				}
				_ = a.Close()
			}
		})
	}
}

func buildBenchArchive(b *testing.B, bc benchReadCase) (data []byte, paths []string, total int64) {
	b.Helper()

	files := make(map[string][]byte, bc.fileCount)
	for i := range bc.fileCount {
		p := fmt.Sprintf("pkg%02d/mod%05d.star", i%16, i)
		files[p] = bytes.Repeat([]byte{byte('a' + (i % 26))}, bc.fileSize)
		paths = append(paths, p)
		total += int64(bc.fileSize)
	}
	return testutil.BuildZip(b, files, bc.opts...), paths, total
}
