package counter

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/kmtricks-go/kmtricks/kerrors"
)

// spillRecord is one (key, count) pair as accumulated in memory.
// key is either a packed canonical k-mer's limbs (big-endian, highest
// limb first) or an 8-byte big-endian hash, depending on the run's
// indexing mode.
type spillRecord struct {
	key   string
	count uint64
}

// spillTable dumps an in-memory key->count map to a temp file, sorted
// by key, mirroring kmer_index.go's "key-sorted dump when the table
// exceeds a memory bound" step (spec §4.6, Strategy A).
func spillTable(dir string, seq int, table map[string]uint64) (string, error) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	path := filepath.Join(dir, fmt.Sprintf("spill.%04d", seq))
	f, err := os.Create(path)
	if err != nil {
		return "", &kerrors.IOError{Op: "create spill", Path: path, Err: err}
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	var lenBuf [2]byte
	var countBuf [8]byte
	for _, k := range keys {
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(k)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return "", &kerrors.IOError{Op: "write spill", Path: path, Err: err}
		}
		if _, err := w.WriteString(k); err != nil {
			return "", &kerrors.IOError{Op: "write spill", Path: path, Err: err}
		}
		binary.LittleEndian.PutUint64(countBuf[:], table[k])
		if _, err := w.Write(countBuf[:]); err != nil {
			return "", &kerrors.IOError{Op: "write spill", Path: path, Err: err}
		}
	}
	if err := w.Flush(); err != nil {
		return "", &kerrors.IOError{Op: "flush spill", Path: path, Err: err}
	}
	return path, nil
}

// spillReader reads one spill file's (key, count) records back in the
// sorted order spillTable wrote them.
type spillReader struct {
	f  *os.File
	br *bufio.Reader
}

func openSpill(path string) (*spillReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &kerrors.IOError{Op: "open spill", Path: path, Err: err}
	}
	return &spillReader{f: f, br: bufio.NewReader(f)}, nil
}

func (r *spillReader) next() (spillRecord, bool, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r.br, lenBuf[:]); err != nil {
		if err == io.EOF {
			return spillRecord{}, false, nil
		}
		return spillRecord{}, false, &kerrors.IOError{Op: "read spill", Path: r.f.Name(), Err: err}
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	key := make([]byte, n)
	if _, err := io.ReadFull(r.br, key); err != nil {
		return spillRecord{}, false, &kerrors.IOError{Op: "read spill", Path: r.f.Name(), Err: err}
	}
	var countBuf [8]byte
	if _, err := io.ReadFull(r.br, countBuf[:]); err != nil {
		return spillRecord{}, false, &kerrors.IOError{Op: "read spill", Path: r.f.Name(), Err: err}
	}
	return spillRecord{key: string(key), count: binary.LittleEndian.Uint64(countBuf[:])}, true, nil
}

func (r *spillReader) close() error {
	return r.f.Close()
}

// sortedSlice replays a sorted in-memory map as a spill-like source,
// used for the final (never-spilled, or last-resident) table so the
// merge step only has to know one source shape.
type sortedSlice struct {
	keys  []string
	table map[string]uint64
	pos   int
}

func newSortedSlice(table map[string]uint64) *sortedSlice {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &sortedSlice{keys: keys, table: table}
}

func (s *sortedSlice) next() (spillRecord, bool, error) {
	if s.pos >= len(s.keys) {
		return spillRecord{}, false, nil
	}
	k := s.keys[s.pos]
	s.pos++
	return spillRecord{key: k, count: s.table[k]}, true, nil
}
