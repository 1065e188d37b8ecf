// Package repartition builds and persists the minimizer→partition
// assignment table (spec §4.4, C4): the total function that routes
// every minimizer to one of P disjoint partitions.
package repartition

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/kmtricks-go/kmtricks/kerrors"
)

// sentinel is the fixed trailer magic that closes a persisted table;
// two tables are "mergeable" only if their entire serialized form,
// sentinel included, is byte-equal (spec §4.4).
const sentinel uint64 = 0x6b6d7072_65706172

// Table is a built or loaded minimizer repartition table.
type Table struct {
	P         int
	MSize     int // 4^m, the number of distinct m-mer values
	PassCount int
	Table     []uint16 // minimizer -> partition, length MSize
	HasFreq   bool
	Freq      []uint32 // minimizer -> frequency rank, length MSize if HasFreq
}

// Partition returns the partition a minimizer value is assigned to.
func (t *Table) Partition(minimizer uint64) int {
	return int(t.Table[minimizer])
}

// Rank implements kmer.RankTable directly over a persisted table's own
// frequency ranks, so a binner re-opening a table built with
// OrderFrequency picks minimizers the same way the table was built,
// without re-running the sampling pass.
func (t *Table) Rank(mmer uint64) uint32 {
	return t.Freq[mmer]
}

// Save persists the table in the format described by spec §4.4:
// {P, 4^m, pass_count, table[4^m], has_freq, (freq[4^m])?} followed by
// the sentinel magic.
func (t *Table) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &kerrors.IOError{Op: "create repartition table", Path: path, Err: err}
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := t.encode(w); err != nil {
		return &kerrors.IOError{Op: "write repartition table", Path: path, Err: err}
	}
	if err := w.Flush(); err != nil {
		return &kerrors.IOError{Op: "flush repartition table", Path: path, Err: err}
	}
	return nil
}

func (t *Table) encode(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(t.P)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(t.MSize)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(t.PassCount)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, t.Table); err != nil {
		return err
	}
	hasFreq := uint8(0)
	if t.HasFreq {
		hasFreq = 1
	}
	if err := binary.Write(w, binary.LittleEndian, hasFreq); err != nil {
		return err
	}
	if t.HasFreq {
		if err := binary.Write(w, binary.LittleEndian, t.Freq); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, sentinel)
}

// Load reads back a table persisted by Save.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &kerrors.IOError{Op: "open repartition table", Path: path, Err: err}
	}
	defer f.Close()
	r := bufio.NewReader(f)

	t := &Table{}
	var p, msize, passCount uint32
	if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
		return nil, &kerrors.FormatError{Op: "read repartition table", Path: path, Kind: "repartition.minimRepart", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &msize); err != nil {
		return nil, &kerrors.FormatError{Op: "read repartition table", Path: path, Kind: "repartition.minimRepart", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &passCount); err != nil {
		return nil, &kerrors.FormatError{Op: "read repartition table", Path: path, Kind: "repartition.minimRepart", Err: err}
	}
	t.P, t.MSize, t.PassCount = int(p), int(msize), int(passCount)
	t.Table = make([]uint16, t.MSize)
	if err := binary.Read(r, binary.LittleEndian, t.Table); err != nil {
		return nil, &kerrors.FormatError{Op: "read repartition table", Path: path, Kind: "repartition.minimRepart", Err: err}
	}
	var hasFreq uint8
	if err := binary.Read(r, binary.LittleEndian, &hasFreq); err != nil {
		return nil, &kerrors.FormatError{Op: "read repartition table", Path: path, Kind: "repartition.minimRepart", Err: err}
	}
	t.HasFreq = hasFreq != 0
	if t.HasFreq {
		t.Freq = make([]uint32, t.MSize)
		if err := binary.Read(r, binary.LittleEndian, t.Freq); err != nil {
			return nil, &kerrors.FormatError{Op: "read repartition table", Path: path, Kind: "repartition.minimRepart", Err: err}
		}
	}
	var got uint64
	if err := binary.Read(r, binary.LittleEndian, &got); err != nil || got != sentinel {
		return nil, &kerrors.FormatError{Op: "read repartition table", Path: path, Kind: "repartition.minimRepart", Err: io.ErrUnexpectedEOF}
	}
	return t, nil
}

// Bytes returns the exact serialized form used for mergeability
// comparisons, without touching disk.
func (t *Table) Bytes() []byte {
	var buf bytes.Buffer
	_ = t.encode(&buf)
	return buf.Bytes()
}

// Mergeable reports whether two tables are byte-equal, the spec's
// precondition for merging independent runs (spec §4.4, §4.8).
func Mergeable(a, b *Table) bool {
	return bytes.Equal(a.Bytes(), b.Bytes())
}
