package bank

import (
	"bufio"
	"context"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

const fastaScanBufferSize = 300 * 1024 * 1024

// FASTAReader streams records out of a FASTA file one at a time,
// without an index: random-access Get/Len by coordinate has no caller
// in a streaming k-mer counter.
type FASTAReader struct {
	f       file.File
	scanner *bufio.Scanner

	pendingName string // name parsed off the '>' line starting the next record
	started     bool
	eof         bool

	name string
	seq  string
	err  error
}

// OpenFASTA opens path (transparently gunzipping if needed) as a
// FASTA bank.
func OpenFASTA(ctx context.Context, path string) (*FASTAReader, error) {
	f, r, err := openDecompressed(ctx, path)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, fastaScanBufferSize)
	return &FASTAReader{f: f, scanner: sc}, nil
}

func parseFASTAName(line string) string {
	return strings.Split(line[1:], " ")[0]
}

// Scan implements Reader.
func (r *FASTAReader) Scan() bool {
	if r.err != nil || r.eof {
		return false
	}
	if !r.started {
		for r.scanner.Scan() {
			line := r.scanner.Text()
			if len(line) > 0 && line[0] == '>' {
				r.pendingName = parseFASTAName(line)
				break
			}
		}
		if err := r.scanner.Err(); err != nil {
			r.err = errors.Wrap(err, "bank: read FASTA")
			return false
		}
		if r.pendingName == "" {
			r.eof = true
			return false
		}
		r.started = true
	}

	curName := r.pendingName
	r.pendingName = ""
	var sb strings.Builder
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			r.pendingName = parseFASTAName(line)
			break
		}
		sb.WriteString(line)
	}
	if err := r.scanner.Err(); err != nil {
		r.err = errors.Wrap(err, "bank: read FASTA")
		return false
	}
	if r.pendingName == "" {
		r.eof = true
	}
	r.name = curName
	r.seq = clean(sb.String())
	return true
}

// Seq implements Reader.
func (r *FASTAReader) Seq() string { return r.seq }

// Name implements Reader.
func (r *FASTAReader) Name() string { return r.name }

// Err implements Reader.
func (r *FASTAReader) Err() error { return r.err }

// Close implements Reader.
func (r *FASTAReader) Close(ctx context.Context) error { return r.f.Close(ctx) }
