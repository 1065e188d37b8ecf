// Package bank adapts FASTA/FASTQ input files into the plain
// sequence-stream interface the rest of the pipeline consumes (spec
// §3's "stream of sequences with an ASCII alphabet {A,C,G,T,N,...}").
// Parsing itself is out of spec's scope; this package only supplies a
// concrete adapter so binner has something to iterate.
package bank

import (
	"context"
	"io"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"

	"github.com/kmtricks-go/kmtricks/internal/seqsimd"
)

// Reader is a pull-iterator over a sequence bank: FASTA records or
// FASTQ reads, uniformly.
type Reader interface {
	// Scan advances to the next sequence, returning false at EOF or
	// error (check Err to distinguish).
	Scan() bool
	// Seq returns the current sequence, cleaned to {A,C,G,T,N}.
	Seq() string
	// Name returns the current record's name/ID.
	Name() string
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases the underlying file.
	Close(ctx context.Context) error
}

// openDecompressed opens path and transparently wraps it in a
// decompressing reader when the extension calls for it, exactly as
// cmd/bio-fusion/main.go's readFASTQ does for its FASTQ inputs.
func openDecompressed(ctx context.Context, path string) (file.File, io.Reader, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	var r io.Reader = f.Reader(ctx)
	if u := compress.NewReaderPath(r, f.Name()); u != nil {
		r = u
	}
	return f, r, nil
}

func clean(seq string) string {
	b := []byte(seq)
	seqsimd.CleanASCIISeqInplace(b)
	return string(b)
}
