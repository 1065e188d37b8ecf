package matrixop

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kmtricks-go/kmtricks/format"
	"github.com/kmtricks-go/kmtricks/kmer"
)

func writeMatrixFile(t *testing.T, path string, n int, rows map[uint64][]uint64) {
	t.Helper()
	ctx := context.Background()
	hdr := format.MatrixCountHeader{K: 8, KmerSlots: 1, CountSlots: 1, NbSamples: n, ID: "run", Partition: 0}
	w, err := format.Create(ctx, path, format.KindMatrixCount, hdr, false)
	if err != nil {
		t.Fatalf("Create(%s): %v", path, err)
	}
	keys := make([]uint64, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	for _, k := range keys {
		rec := format.MarshalMatrixCountRow(kmer.Kmer{k}, rows[k], format.Count8)
		if err := w.WriteRecord(rec); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func writeKmerFile(t *testing.T, path string, rows map[uint64]uint64) {
	t.Helper()
	ctx := context.Background()
	hdr := format.CountHeader{K: 8, KmerSlots: 1, CountSlots: 1, SampleID: "new", Partition: 0}
	w, err := format.Create(ctx, path, format.KindKmerCount, hdr, false)
	if err != nil {
		t.Fatalf("Create(%s): %v", path, err)
	}
	keys := make([]uint64, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	for _, k := range keys {
		rec := format.MarshalKmerCount(kmer.Kmer{k}, rows[k], format.Count8)
		if err := w.WriteRecord(rec); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readMatrixFile(t *testing.T, path string, n int) ([]kmer.Kmer, [][]uint64) {
	t.Helper()
	ctx := context.Background()
	var hdr format.MatrixCountHeader
	r, err := format.Open(ctx, path, format.KindMatrixCount, &hdr)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	defer r.Close(ctx)

	var buf []byte
	var keys []kmer.Kmer
	var rows [][]uint64
	for {
		ok, err := r.ReadRecord(&buf)
		if err != nil {
			t.Fatalf("ReadRecord: %v", err)
		}
		if !ok {
			break
		}
		km, counts := format.UnmarshalMatrixCountRow(buf, 1, n, format.Count8)
		keys = append(keys, km)
		rows = append(rows, counts)
	}
	return keys, rows
}

func TestAggregateConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeMatrixFile(t, filepath.Join(dir, "p0.mat"), 1, map[uint64][]uint64{1: {5}, 2: {3}})
	writeMatrixFile(t, filepath.Join(dir, "p1.mat"), 1, map[uint64][]uint64{10: {7}})

	ctx := context.Background()
	out := filepath.Join(dir, "out.mat")
	newHeader := func() interface{} { return &format.MatrixCountHeader{} }
	err := Aggregate(ctx, format.KindMatrixCount, newHeader, out,
		[]string{filepath.Join(dir, "p0.mat"), filepath.Join(dir, "p1.mat")})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	keys, rows := readMatrixFile(t, out, 1)
	if len(keys) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(keys))
	}
	if keys[0][0] != 1 || keys[1][0] != 2 || keys[2][0] != 10 {
		t.Fatalf("unexpected key order: %v", keys)
	}
	if rows[0][0] != 5 || rows[1][0] != 3 || rows[2][0] != 7 {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestMergeCombinesColumnsByKey(t *testing.T) {
	dir := t.TempDir()
	writeMatrixFile(t, filepath.Join(dir, "run0.mat"), 1, map[uint64][]uint64{1: {5}, 2: {1}, 3: {9}})
	writeMatrixFile(t, filepath.Join(dir, "run1.mat"), 1, map[uint64][]uint64{1: {4}, 3: {2}})

	ctx := context.Background()
	s0, err := OpenSource(ctx, filepath.Join(dir, "run0.mat"), format.KindMatrixCount, false, false, 1, 1, 0, format.Count8)
	if err != nil {
		t.Fatalf("OpenSource s0: %v", err)
	}
	s1, err := OpenSource(ctx, filepath.Join(dir, "run1.mat"), format.KindMatrixCount, false, false, 1, 1, 1, format.Count8)
	if err != nil {
		t.Fatalf("OpenSource s1: %v", err)
	}

	out := filepath.Join(dir, "merged.mat")
	cfg := MergeConfig{Kind: format.KindMatrixCount, K: 8, KmerSlots: 1, NTotal: 2, Width: format.Count8, ID: "merged", Partition: 0}
	if err := Merge(ctx, []*Source{s0, s1}, cfg, out); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	keys, rows := readMatrixFile(t, out, 2)
	if len(keys) != 3 {
		t.Fatalf("expected 3 merged rows, got %d", len(keys))
	}
	want := map[uint64][2]uint64{1: {5, 4}, 2: {1, 0}, 3: {9, 2}}
	for i, km := range keys {
		w, ok := want[km[0]]
		if !ok {
			t.Fatalf("unexpected key %v in merged output", km)
		}
		if rows[i][0] != w[0] || rows[i][1] != w[1] {
			t.Fatalf("key %d: expected %v, got %v", km[0], w, rows[i])
		}
	}
}

func TestFilterFoldsNewSampleIntoMatrix(t *testing.T) {
	dir := t.TempDir()
	writeMatrixFile(t, filepath.Join(dir, "existing.mat"), 1, map[uint64][]uint64{1: {5}, 3: {9}})
	writeKmerFile(t, filepath.Join(dir, "new.kmer"), map[uint64]uint64{1: 2, 2: 7})

	ctx := context.Background()
	kmers, err := OpenSampleStream(ctx, filepath.Join(dir, "new.kmer"), false, 1, format.Count8)
	if err != nil {
		t.Fatalf("OpenSampleStream: %v", err)
	}
	matrix, err := OpenSource(ctx, filepath.Join(dir, "existing.mat"), format.KindMatrixCount, false, false, 1, 1, 0, format.Count8)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}

	matOut := filepath.Join(dir, "out.mat")
	vecOut := filepath.Join(dir, "out.vec")
	kmerOut := filepath.Join(dir, "out.kmer")
	cfg := FilterConfig{
		MatrixKind: format.KindMatrixCount, K: 8, KmerSlots: 1, N: 1, Width: format.Count8,
		ID: "run", Partition: 0,
		MatrixOutPath: matOut, VecOutPath: vecOut, KmerOutPath: kmerOut,
	}
	if err := Filter(ctx, kmers, matrix, cfg); err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if err := kmers.close(ctx); err != nil {
		t.Fatalf("close kmers: %v", err)
	}

	keys, rows := readMatrixFile(t, matOut, 2)
	if len(keys) != 3 {
		t.Fatalf("expected 3 rows (1, 2, 3), got %d", len(keys))
	}
	want := map[uint64][2]uint64{1: {5, 2}, 2: {0, 7}, 3: {9, 0}}
	for i, km := range keys {
		w, ok := want[km[0]]
		if !ok {
			t.Fatalf("unexpected key %v", km)
		}
		if rows[i][0] != w[0] || rows[i][1] != w[1] {
			t.Fatalf("key %d: expected %v got %v", km[0], w, rows[i])
		}
	}

	vf, err := os.Open(vecOut)
	if err != nil {
		t.Fatalf("open vec_out: %v", err)
	}
	defer vf.Close()
	var lines []string
	sc := bufio.NewScanner(vf)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 3 || lines[0] != "2" || lines[1] != "7" || lines[2] != "0" {
		t.Fatalf("unexpected vec_out lines: %v", lines)
	}

	var kHdr format.CountHeader
	kr, err := format.Open(ctx, kmerOut, format.KindKmerCount, &kHdr)
	if err != nil {
		t.Fatalf("open kmer_out: %v", err)
	}
	defer kr.Close(ctx)
	var buf []byte
	var newKeys []uint64
	for {
		ok, err := kr.ReadRecord(&buf)
		if err != nil {
			t.Fatalf("ReadRecord kmer_out: %v", err)
		}
		if !ok {
			break
		}
		km, c := format.UnmarshalKmerCount(buf, 1, format.Count8)
		newKeys = append(newKeys, km[0])
		if km[0] == 2 && c != 7 {
			t.Fatalf("expected new kmer 2 to carry count 7, got %d", c)
		}
	}
	if len(newKeys) != 1 || newKeys[0] != 2 {
		t.Fatalf("expected exactly one new kmer (key 2), got %v", newKeys)
	}
}
