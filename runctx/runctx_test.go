package runctx

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func TestParseFofBasic(t *testing.T) {
	input := `
s0 : /data/s0_1.fq ; /data/s0_2.fq
s1 : /data/s1.fq ! 3

`
	samples, err := ParseFof(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseFof: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].ID != "s0" || len(samples[0].Paths) != 2 || samples[0].AbundanceMin != 0 {
		t.Fatalf("unexpected sample 0: %+v", samples[0])
	}
	if samples[1].ID != "s1" || samples[1].AbundanceMin != 3 {
		t.Fatalf("unexpected sample 1: %+v", samples[1])
	}
}

func TestParseFofDuplicateID(t *testing.T) {
	input := "a : x.fq\na : y.fq\n"
	if _, err := ParseFof(strings.NewReader(input)); err == nil {
		t.Fatal("expected error for duplicate sample id")
	}
}

func TestParseFofMissingColon(t *testing.T) {
	if _, err := ParseFof(strings.NewReader("not-a-valid-line\n")); err == nil {
		t.Fatal("expected error for missing ':' separator")
	}
}

func TestWriteFofRoundTrip(t *testing.T) {
	samples := []Sample{
		{ID: "a", Paths: []string{"x.fq", "y.fq"}},
		{ID: "b", Paths: []string{"z.fq"}, AbundanceMin: 5},
	}
	var buf bytes.Buffer
	if err := WriteFof(&buf, samples); err != nil {
		t.Fatalf("WriteFof: %v", err)
	}
	got, err := ParseFof(&buf)
	if err != nil {
		t.Fatalf("ParseFof round trip: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].AbundanceMin != 5 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestHashInfoRoundTrip(t *testing.T) {
	hi := DeriveHashInfo(8, 1000)
	if hi.PartitionCount != 8 {
		t.Fatalf("unexpected partition count: %d", hi.PartitionCount)
	}
	windowSize := uint64(1) << hi.WindowSizeBits
	if windowSize < 1000 {
		t.Fatalf("window size %d too small for 1000 expected hashes", windowSize)
	}
	if hi.Upper-hi.Lower+1 != uint64(hi.PartitionCount)*windowSize {
		t.Fatalf("invariant violated: upper-lower+1=%d, partition_count*window=%d",
			hi.Upper-hi.Lower+1, uint64(hi.PartitionCount)*windowSize)
	}

	var buf bytes.Buffer
	if err := WriteHashInfo(&buf, hi); err != nil {
		t.Fatalf("WriteHashInfo: %v", err)
	}
	got, err := ReadHashInfo(&buf)
	if err != nil {
		t.Fatalf("ReadHashInfo: %v", err)
	}
	if got != hi {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, hi)
	}
}

func TestPartitionRangeTilesWithoutGaps(t *testing.T) {
	hi := DeriveHashInfo(4, 100)
	windowSize := uint64(1) << hi.WindowSizeBits
	for p := 0; p < 4; p++ {
		lower, upper := hi.PartitionRange(p)
		if upper-lower+1 != windowSize {
			t.Fatalf("partition %d: unexpected window size %d", p, upper-lower+1)
		}
		if p > 0 {
			prevLower, prevUpper := hi.PartitionRange(p - 1)
			_ = prevLower
			if lower != prevUpper+1 {
				t.Fatalf("partition %d does not immediately follow partition %d: %d vs %d", p, p-1, lower, prevUpper)
			}
		}
	}
}

func TestConfigFitsOpenFileLimit(t *testing.T) {
	cfg := Config{Partitions: 10000, Threads: 8, MergeParallelism: 8, MaxOpenFiles: 256}
	cfg.fitToOpenFileLimit()
	if uint64(cfg.Partitions) > cfg.MaxOpenFiles/2 {
		t.Fatalf("partitions %d still exceed max_open_files/2=%d", cfg.Partitions, cfg.MaxOpenFiles/2)
	}
}

func TestRunContextLayoutPaths(t *testing.T) {
	rc := NewRunContext("/runs/r0", Config{Partitions: 2})
	defer rc.Close()

	if got := rc.KmerCountPath(1, "s0"); got != "/runs/r0/counts/partition_1/s0.kmer" {
		t.Fatalf("unexpected KmerCountPath: %s", got)
	}
	if got := rc.MatrixPath(1, false, true, true); got != "/runs/r0/matrices/matrix_1.pa.lz4" {
		t.Fatalf("unexpected MatrixPath: %s", got)
	}
	if got := rc.SuperkmerSkpPath("s0", 3); got != "/runs/r0/superkmers/s0/skp.3" {
		t.Fatalf("unexpected SuperkmerSkpPath: %s", got)
	}
}

func TestEraserDeletesQueuedPaths(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/victim.txt"
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	e := NewEraser()
	e.Delete(path)
	e.Close()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be deleted, stat err=%v", path, err)
	}
}

func TestRunInfoWritesElapsedAndPeakRSS(t *testing.T) {
	ri := StartRunInfo(time.Now().Add(-time.Second), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	ri.Stop()

	var buf bytes.Buffer
	if err := ri.Write(&buf, time.Now()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "elapsed:") || !strings.Contains(out, "peak_rss_bytes:") {
		t.Fatalf("unexpected run info output: %q", out)
	}
}
