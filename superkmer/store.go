package superkmer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kmtricks-go/kmtricks/kerrors"
)

// fileName returns the on-disk name of partition p's bin file within
// a sample's directory (spec §4.11: "skp.<p>").
func fileName(p int) string {
	return fmt.Sprintf("skp.%d", p)
}

// Store owns one sample's per-partition bin files: P append-only
// files, each guarded by its own mutex (spec §5: "one mutex per
// (sample, partition)").
type Store struct {
	dir        string
	partitions int
	mu         []sync.Mutex
	writers    []*os.File
	counts     []uint64 // super-k-mer counts, per partition
	sizes      []uint64 // byte sizes, per partition
}

// Create makes (or truncates) the P bin files for one sample under
// dir, which must already exist.
func Create(dir string, partitions int) (*Store, error) {
	s := &Store{
		dir:        dir,
		partitions: partitions,
		mu:         make([]sync.Mutex, partitions),
		writers:    make([]*os.File, partitions),
		counts:     make([]uint64, partitions),
		sizes:      make([]uint64, partitions),
	}
	for p := 0; p < partitions; p++ {
		path := filepath.Join(dir, fileName(p))
		f, err := os.Create(path)
		if err != nil {
			return nil, &kerrors.IOError{Op: "create bin", Path: path, Err: err}
		}
		s.writers[p] = f
	}
	return s, nil
}

// WriteBlock atomically appends a pre-framed block (as produced by
// Cache.Flush) to partition p's bin file under that partition's
// mutex, and updates the info counters. nSuperKmers is the number of
// super-k-mers contained in block, used for the skp.info accounting.
func (s *Store) WriteBlock(p int, block []byte, nSuperKmers uint64) error {
	s.mu[p].Lock()
	defer s.mu[p].Unlock()
	if _, err := s.writers[p].Write(block); err != nil {
		path := filepath.Join(s.dir, fileName(p))
		return &kerrors.IOError{Op: "write block", Path: path, Err: err}
	}
	s.counts[p] += nSuperKmers
	s.sizes[p] += uint64(len(block))
	return nil
}

// Close flushes and closes every partition's writer and persists the
// info file (spec §4.3: "the info file recording (file_count,
// per-partition super-k-mer counts, per-partition byte sizes)").
func (s *Store) Close() error {
	for p, f := range s.writers {
		if err := f.Close(); err != nil {
			return &kerrors.IOError{Op: "close bin", Path: filepath.Join(s.dir, fileName(p)), Err: err}
		}
	}
	return WriteInfo(filepath.Join(s.dir, InfoFileName), Info{
		FileCount:  s.partitions,
		SuperKmers: s.counts,
		Bytes:      s.sizes,
	})
}

// Reader reads one partition's bin file sequentially, block by block.
type Reader struct {
	f   *os.File
	br  *bufio.Reader
	buf []byte
}

// OpenReader opens partition p's bin file within dir for sequential
// block reads.
func OpenReader(dir string, p int) (*Reader, error) {
	path := filepath.Join(dir, fileName(p))
	f, err := os.Open(path)
	if err != nil {
		return nil, &kerrors.IOError{Op: "open bin", Path: path, Err: err}
	}
	return &Reader{f: f, br: bufio.NewReaderSize(f, 1<<20)}, nil
}

// ReadBlock reads the next length-prefixed block into the reader's
// internal buffer and returns it. The returned slice is only valid
// until the next ReadBlock call. Returns ok=false at a clean EOF.
func (r *Reader) ReadBlock() (block []byte, ok bool, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.br, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, &kerrors.FormatError{Op: "read block length", Path: r.f.Name(), Err: err}
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if cap(r.buf) < int(n) {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	if _, err := io.ReadFull(r.br, r.buf); err != nil {
		return nil, false, &kerrors.FormatError{Op: "read block", Path: r.f.Name(), Err: err}
	}
	return r.buf, true, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if err := r.f.Close(); err != nil {
		return &kerrors.IOError{Op: "close bin", Path: r.f.Name(), Err: err}
	}
	return nil
}

// IterateSuperKmers decodes every super-k-mer in a block produced by
// Cache, calling fn(seq, nK) for each. k is needed to recover each
// super-k-mer's nucleotide length from its leading n_k byte.
func IterateSuperKmers(block []byte, k int, fn func(seq string, nK int)) {
	off := 0
	for off < len(block) {
		nK := int(block[off])
		size := PayloadSize(k, nK)
		seq, _ := Decode(block[off:off+size], k)
		fn(seq, nK)
		off += size
	}
}
