package bank

import (
	"context"
	"errors"
	"strings"

	"github.com/kmtricks-go/kmtricks/kerrors"
)

// Open picks FASTAReader or FASTQReader by extension (ignoring a
// trailing .gz), matching the two formats spec §3 names as the bank's
// input alphabet sources.
func Open(ctx context.Context, path string) (Reader, error) {
	base := strings.TrimSuffix(path, ".gz")
	switch {
	case hasAnySuffix(base, ".fa", ".fasta", ".fna"):
		return OpenFASTA(ctx, path)
	case hasAnySuffix(base, ".fq", ".fastq"):
		return OpenFASTQ(ctx, path)
	default:
		return nil, &kerrors.InputError{Op: "bank.Open", Path: path, Err: errUnknownFormat}
	}
}

var errUnknownFormat = errors.New("bank: unrecognized sequence file extension")

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// SeqIterator adapts a Reader to the repartition.SeqSource /
// binner-consumed shape (a bare Next() (string, bool) pull
// iterator), so a bank.Reader can feed either the repartition builder
// or the binner directly.
type SeqIterator struct {
	r Reader
}

// NewSeqIterator wraps r.
func NewSeqIterator(r Reader) *SeqIterator { return &SeqIterator{r: r} }

// Next implements the SeqSource shape.
func (s *SeqIterator) Next() (string, bool) {
	if !s.r.Scan() {
		return "", false
	}
	return s.r.Seq(), true
}
