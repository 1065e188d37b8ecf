package bank

import (
	"context"

	"github.com/grailbio/base/file"

	"github.com/kmtricks-go/kmtricks/encoding/fastq"
)

// FASTQReader adapts the teacher's fastq.Scanner almost unchanged — it
// already has exactly the right shape (Scan(*Read) bool / Err()
// error) — to the Reader interface, cleaning each sequence before
// handing it to the binner.
type FASTQReader struct {
	f       file.File
	scanner *fastq.Scanner
	read    fastq.Read
	seq     string
}

// OpenFASTQ opens path (transparently gunzipping if needed) as a
// FASTQ bank.
func OpenFASTQ(ctx context.Context, path string) (*FASTQReader, error) {
	f, r, err := openDecompressed(ctx, path)
	if err != nil {
		return nil, err
	}
	return &FASTQReader{f: f, scanner: fastq.NewScanner(r, fastq.ID|fastq.Seq)}, nil
}

// Scan implements Reader.
func (r *FASTQReader) Scan() bool {
	if !r.scanner.Scan(&r.read) {
		return false
	}
	r.seq = clean(r.read.Seq)
	return true
}

// Seq implements Reader.
func (r *FASTQReader) Seq() string { return r.seq }

// Name implements Reader.
func (r *FASTQReader) Name() string {
	if len(r.read.ID) > 0 && r.read.ID[0] == '@' {
		return r.read.ID[1:]
	}
	return r.read.ID
}

// Err implements Reader.
func (r *FASTQReader) Err() error { return r.scanner.Err() }

// Close implements Reader.
func (r *FASTQReader) Close(ctx context.Context) error { return r.f.Close(ctx) }
