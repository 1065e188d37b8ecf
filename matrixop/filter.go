package matrixop

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/kmtricks-go/kmtricks/format"
)

// SampleStream adapts a single-sample kmer/hash count partition file
// (C6 output) to the (key, count) shape the filter needs, mirroring
// Source but for the un-widened per-sample stream rather than a
// matrix.
type SampleStream struct {
	r        *format.Reader
	hashMode bool
	kmerSlots int
	width    format.CountWidth
	buf      []byte
}

func OpenSampleStream(ctx context.Context, path string, hashMode bool, kmerSlots int, width format.CountWidth) (*SampleStream, error) {
	var hdr interface{}
	if hashMode {
		hdr = &format.HashCountHeader{}
	} else {
		hdr = &format.CountHeader{}
	}
	kind := format.KindKmerCount
	if hashMode {
		kind = format.KindHashCount
	}
	r, err := format.Open(ctx, path, kind, hdr)
	if err != nil {
		return nil, err
	}
	return &SampleStream{r: r, hashMode: hashMode, kmerSlots: kmerSlots, width: width}, nil
}

func (s *SampleStream) next() (key string, count uint64, ok bool, err error) {
	ok, err = s.r.ReadRecord(&s.buf)
	if err != nil || !ok {
		return "", 0, false, err
	}
	if s.hashMode {
		h, c := format.UnmarshalHashCount(s.buf, s.width)
		return hashKeyBytes(h), c, true, nil
	}
	km, c := format.UnmarshalKmerCount(s.buf, s.kmerSlots, s.width)
	return keyBytes(km), c, true, nil
}

func (s *SampleStream) close(ctx context.Context) error { return s.r.Close(ctx) }

// FilterConfig describes the geometry of a C9 filter pass: folding one
// new sample's per-sample count stream into an existing matrix
// partition.
type FilterConfig struct {
	MatrixKind format.Kind
	HashMode   bool
	IsPA       bool
	K          int
	KmerSlots  int
	N          int // existing sample columns in the matrix, before the new one
	Width      format.CountWidth
	ID         string
	Partition  int

	// Sink paths. Empty disables that sink.
	MatrixOutPath string
	VecOutPath    string
	KmerOutPath   string
}

// Filter implements spec §4.9's two-pointer merge of a per-sample
// count stream into an existing matrix, producing up to three
// independently-enabled sinks: matrix_out (matrix plus one new
// column), vec_out (the new column alone, in matrix order), and
// kmer_out (keys present in the sample but absent from the matrix).
func Filter(ctx context.Context, kmers *SampleStream, matrix *Source, cfg FilterConfig) error {
	var matOut *format.Writer
	var vecOut *bufio.Writer
	var vecFile *os.File
	var kmerOut *format.Writer
	var err error

	if cfg.MatrixOutPath != "" {
		mcfg := MergeConfig{
			Kind: cfg.MatrixKind, HashMode: cfg.HashMode, IsPA: cfg.IsPA,
			K: cfg.K, KmerSlots: cfg.KmerSlots, NTotal: cfg.N + 1, Width: cfg.Width,
			ID: cfg.ID, Partition: cfg.Partition,
		}
		matOut, err = makeMergeWriter(ctx, mcfg, cfg.MatrixOutPath)
		if err != nil {
			return err
		}
	}
	if cfg.VecOutPath != "" {
		vecFile, err = os.Create(cfg.VecOutPath)
		if err != nil {
			closeIfOpen(ctx, matOut)
			return err
		}
		vecOut = bufio.NewWriter(vecFile)
	}
	if cfg.KmerOutPath != "" {
		kind := format.KindKmerCount
		var hdr interface{} = format.CountHeader{K: cfg.K, KmerSlots: cfg.KmerSlots, CountSlots: cfg.Width.Bytes(), SampleID: cfg.ID, Partition: cfg.Partition}
		if cfg.HashMode {
			kind = format.KindHashCount
			hdr = format.HashCountHeader{CountSlots: cfg.Width.Bytes(), SampleID: cfg.ID, Partition: cfg.Partition}
		}
		kmerOut, err = format.Create(ctx, cfg.KmerOutPath, kind, hdr, true)
		if err != nil {
			closeIfOpen(ctx, matOut)
			flushVec(vecOut, vecFile)
			return err
		}
	}

	emitMatrixRow := func(key string, row []uint64) error {
		if matOut == nil {
			return nil
		}
		return emitMergedRow(matOut, MergeConfig{Kind: cfg.MatrixKind, HashMode: cfg.HashMode, IsPA: cfg.IsPA, Width: cfg.Width}, key, row)
	}
	emitVec := func(v uint64) error {
		if vecOut == nil {
			return nil
		}
		if cfg.IsPA {
			if v > 0 {
				_, err := vecOut.WriteString("1\n")
				return err
			}
			_, err := vecOut.WriteString("0\n")
			return err
		}
		_, err := fmt.Fprintf(vecOut, "%d\n", v)
		return err
	}
	emitNewKmer := func(key string, count uint64) error {
		if kmerOut == nil {
			return nil
		}
		if cfg.HashMode {
			return kmerOut.WriteRecord(format.MarshalHashCount(keyToHash(key), count, cfg.Width))
		}
		return kmerOut.WriteRecord(format.MarshalKmerCount(keyToKmer(key), count, cfg.Width))
	}

	row := make([]uint64, cfg.N+1)
	kKey, kCount, kOK, err := kmers.next()
	if err != nil {
		return err
	}
	mKey, mVals, mOK, err := matrix.Next()
	if err != nil {
		return err
	}

	for kOK || mOK {
		switch {
		case kOK && (!mOK || kKey < mKey):
			if err := emitNewKmer(kKey, kCount); err != nil {
				return err
			}
			for i := range row {
				row[i] = 0
			}
			row[cfg.N] = kCount
			if err := emitMatrixRow(kKey, row); err != nil {
				return err
			}
			if err := emitVec(kCount); err != nil {
				return err
			}
			kKey, kCount, kOK, err = kmers.next()
			if err != nil {
				return err
			}
		case mOK && (!kOK || mKey < kKey):
			copy(row, mVals)
			row[cfg.N] = 0
			if err := emitMatrixRow(mKey, row); err != nil {
				return err
			}
			if err := emitVec(0); err != nil {
				return err
			}
			mKey, mVals, mOK, err = matrix.Next()
			if err != nil {
				return err
			}
		default: // equal keys
			copy(row, mVals)
			row[cfg.N] = kCount
			if err := emitMatrixRow(kKey, row); err != nil {
				return err
			}
			if err := emitVec(kCount); err != nil {
				return err
			}
			kKey, kCount, kOK, err = kmers.next()
			if err != nil {
				return err
			}
			mKey, mVals, mOK, err = matrix.Next()
			if err != nil {
				return err
			}
		}
	}

	if err := closeIfOpen(ctx, matOut); err != nil {
		return err
	}
	if vecOut != nil {
		if err := vecOut.Flush(); err != nil {
			return err
		}
		if err := vecFile.Close(); err != nil {
			return err
		}
	}
	if kmerOut != nil {
		return kmerOut.Close(ctx)
	}
	return nil
}

func closeIfOpen(ctx context.Context, w *format.Writer) error {
	if w == nil {
		return nil
	}
	return w.Close(ctx)
}

func flushVec(w *bufio.Writer, f *os.File) {
	if w != nil {
		w.Flush()
	}
	if f != nil {
		f.Close()
	}
}
