package merger

import (
	"context"

	"github.com/kmtricks-go/kmtricks/format"
)

// SampleSource sequentially reads one sample's sorted count stream
// (a *.kmer or *.hash partition file), exposing (key, count) pairs in
// the internal big-endian key encoding key.go uses.
type SampleSource struct {
	r        *format.Reader
	hashMode bool
	width    format.CountWidth
	slots    int
	buf      []byte
}

// OpenSampleSource opens path as either a kmer-indexed or
// hash-indexed count file, matching the run's indexing mode.
func OpenSampleSource(ctx context.Context, path string, hashMode bool, width format.CountWidth, kmerSlots int) (*SampleSource, error) {
	var r *format.Reader
	var err error
	if hashMode {
		var hdr format.HashCountHeader
		r, err = format.Open(ctx, path, format.KindHashCount, &hdr)
	} else {
		var hdr format.CountHeader
		r, err = format.Open(ctx, path, format.KindKmerCount, &hdr)
	}
	if err != nil {
		return nil, err
	}
	return &SampleSource{r: r, hashMode: hashMode, width: width, slots: kmerSlots}, nil
}

// Next returns the next (key, count) pair, or ok=false at EOF.
func (s *SampleSource) Next() (key string, count uint64, ok bool, err error) {
	ok, err = s.r.ReadRecord(&s.buf)
	if err != nil || !ok {
		return "", 0, false, err
	}
	if s.hashMode {
		h, c := format.UnmarshalHashCount(s.buf, s.width)
		return hashKeyBytes(h), c, true, nil
	}
	km, c := format.UnmarshalKmerCount(s.buf, s.slots, s.width)
	return keyBytes(km), c, true, nil
}

// Close closes the underlying file.
func (s *SampleSource) Close(ctx context.Context) error {
	return s.r.Close(ctx)
}
