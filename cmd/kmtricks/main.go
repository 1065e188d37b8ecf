// Package main is kmtricks's CLI entry point: it drives one pipeline
// run end to end (spec §2) — repartition table, per-sample binning,
// per-partition counting, and the N-way merge into matrix/vector
// outputs — plus a small set of post-hoc subcommands that operate on
// already-built run directories (aggregate, merge, filter).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/kmtricks-go/kmtricks/bank"
	"github.com/kmtricks-go/kmtricks/binner"
	"github.com/kmtricks-go/kmtricks/counter"
	"github.com/kmtricks-go/kmtricks/format"
	"github.com/kmtricks-go/kmtricks/kerrors"
	"github.com/kmtricks-go/kmtricks/kmer"
	"github.com/kmtricks-go/kmtricks/merger"
	"github.com/kmtricks-go/kmtricks/pipeline"
	"github.com/kmtricks-go/kmtricks/repartition"
	"github.com/kmtricks-go/kmtricks/runctx"
	"github.com/kmtricks-go/kmtricks/superkmer"
)

var (
	fofPath         string
	runDir          string
	kSize           int
	mSize           int
	partitions      int
	threads         int
	focus           float64
	abundanceMin    uint64
	hashMode        bool
	paMode          bool
	solidity        string
	rMinCustom      int
	saveIfThreshold int
	freqOrder       bool
	sampleFrac      float64
	sampleCap       int
	cacheBudget     int
	spillEntries    int
	keepTmp         bool
	compressed      bool
	countBits       int

	op string // "", "aggregate", "merge-runs", "filter"

	aggInputs string
	aggOut    string

	mergeRuns      string
	mergeOut       string
	mergePartition int
	mergeNTotal    int

	filterMatrixIn  string
	filterKmerIn    string
	filterMatrixOut string
	filterVecOut    string
	filterKmerOut   string
)

func registerFlags() {
	flag.StringVar(&fofPath, "file", "", "sample descriptor file (kmtricks.fof)")
	flag.StringVar(&runDir, "run-dir", "", "output run directory")
	flag.IntVar(&kSize, "k", 31, "k-mer size")
	flag.IntVar(&mSize, "m", 10, "minimizer size")
	flag.IntVar(&partitions, "partitions", 256, "number of partitions")
	flag.IntVar(&threads, "threads", 4, "thread budget T (spec §5)")
	flag.Float64Var(&focus, "focus", 1.0, "fraction of T reserved for binning (spec §4.10)")
	flag.Uint64Var(&abundanceMin, "abundance-min", 2, "default per-sample abundance floor")
	flag.BoolVar(&hashMode, "hash", false, "key counts/matrices by hash instead of packed k-mer")
	flag.BoolVar(&paMode, "pa", false, "emit presence/absence matrices instead of counts")
	flag.StringVar(&solidity, "solidity", "any", "recurrence rule: any, all, or custom")
	flag.IntVar(&rMinCustom, "r-min", 1, "recurrence threshold when -solidity=custom")
	flag.IntVar(&saveIfThreshold, "save-if", 0, "rescue threshold (0 disables): a sample below abundance-min is still counted if the solid samples plus that sample reach this")
	flag.BoolVar(&freqOrder, "frequency-order", false, "rank minimizers by sampled frequency instead of lexicographic order")
	flag.Float64Var(&sampleFrac, "sample-fraction", 0.05, "fraction of reads sampled to build the repartition table")
	flag.IntVar(&sampleCap, "sample-cap", 2_000_000, "hard cap on sampled reads for repartition table construction")
	flag.IntVar(&cacheBudget, "bin-cache-bytes", 1<<20, "per-partition super-k-mer cache flush threshold")
	flag.IntVar(&spillEntries, "spill-threshold", 2_000_000, "distinct in-memory keys before a counter spills to disk")
	flag.BoolVar(&keepTmp, "keep-tmp", false, "keep temporary files for failed partitions")
	flag.BoolVar(&compressed, "lz4", true, "lz4-compress matrix and vector outputs")
	flag.IntVar(&countBits, "count-width", 32, "count value width in bits: 8, 16, or 32")

	flag.StringVar(&op, "op", "", "post-hoc operation on existing run(s): aggregate, merge-runs, filter (empty: run the full pipeline)")

	flag.StringVar(&aggInputs, "aggregate-inputs", "", "comma-separated list of disjoint-key matrix files to concatenate")
	flag.StringVar(&aggOut, "aggregate-out", "", "output path for -op=aggregate")

	flag.StringVar(&mergeRuns, "merge-run-dirs", "", "comma-separated list of run directories to merge (spec §4.8)")
	flag.StringVar(&mergeOut, "merge-out", "", "output matrix path for -op=merge-runs")
	flag.IntVar(&mergePartition, "merge-partition", 0, "partition index to merge across the given run directories")
	flag.IntVar(&mergeNTotal, "merge-n-total", 0, "sample columns in each input matrix, the same for every run (0: 1 column); used by -op=merge-runs and -op=filter")

	flag.StringVar(&filterMatrixIn, "filter-matrix-in", "", "existing matrix file to extend with one new sample")
	flag.StringVar(&filterKmerIn, "filter-kmer-in", "", "new sample's single-column count/hash file")
	flag.StringVar(&filterMatrixOut, "filter-matrix-out", "", "extended matrix output path")
	flag.StringVar(&filterVecOut, "filter-vec-out", "", "optional: plain per-key vector output for the new sample's column")
	flag.StringVar(&filterKmerOut, "filter-kmer-out", "", "optional: keys private to the new sample, not already in the matrix")
}

func main() {
	registerFlags()
	flag.Usage = usage
	flag.Parse()

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	var err error
	switch op {
	case "aggregate":
		err = runAggregate(ctx)
	case "merge-runs":
		err = runMergeRuns(ctx)
	case "filter":
		err = runFilter(ctx)
	default:
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, kerrors.Diagnostic(err))
		os.Exit(1)
	}
	log.Printf("kmtricks: done")
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: kmtricks -file kmtricks.fof -run-dir <dir> [flags]\n")
	fmt.Fprintf(os.Stderr, "       kmtricks -op=aggregate|merge-runs|filter [flags]\n")
	flag.PrintDefaults()
}

func run(ctx context.Context) error {
	if fofPath == "" || runDir == "" {
		return &kerrors.InputError{Op: "kmtricks", Err: errMissingRequiredFlags}
	}

	ri := runctx.NewRunInfo(500 * time.Millisecond)
	defer ri.Stop()

	cfg := runctx.NewConfig(kSize, mSize, partitions, threads, focus, abundanceMin, countMode(), keepTmp)
	rc := runctx.NewRunContext(runDir, cfg)
	defer rc.Close()

	samples, err := readFof(fofPath)
	if err != nil {
		return err
	}
	if err := mkdirs(rc, sampleIDs(samples)); err != nil {
		return err
	}

	table, err := buildRepartitionTable(rc, samples)
	if err != nil {
		return err
	}

	width := countWidth()
	kmerSlots := kmer.Slots(rc.Config.K)
	hinfo := runctx.DeriveHashInfo(uint32(rc.Config.Partitions), uint64(table.MSize/rc.Config.Partitions+1))
	if err := writeHashInfo(rc, hinfo); err != nil {
		return err
	}

	pool := pipeline.NewPool(rc.Config.Threads)
	sched := pipeline.NewScheduler(pool, rc.Config.Threads, rc.Config.Focus, rc.Config.Partitions)

	stats := merger.NewStats(len(samples))
	hists := newHistAccumulator()
	var mergeMu sync.Mutex // merger.Stats isn't safe for concurrent updates across partitions

	sched.OnPartitionComplete(func(partition int) {
		mergeMu.Lock()
		defer mergeMu.Unlock()
		if err := mergePartition(ctx, rc, samples, table, partition, width, kmerSlots, stats); err != nil {
			log.Printf("kmtricks: partition %d merge failed: %v", partition, kerrors.Diagnostic(err))
			pool.Cancel()
		}
	})

	jobs := make([]pipeline.SampleJob, len(samples))
	for i, s := range samples {
		s := s
		jobs[i] = pipeline.SampleJob{
			Bin: binTask(ctx, rc, table, s),
			MakeCounting: func() []pipeline.Task {
				return countTasks(ctx, rc, s, table, width, kmerSlots, hinfo, hists)
			},
		}
	}

	if err := sched.Run(jobs); err != nil {
		return &kerrors.PipelineError{Op: "kmtricks: scheduler", Err: err}
	}
	if err := pool.JoinAll(); err != nil {
		return &kerrors.PipelineError{Op: "kmtricks: pool", Err: err}
	}
	if err := hists.writeAll(ctx, rc, rc.Config.K); err != nil {
		return err
	}

	return writeRunInfos(rc, ri)
}

var errMissingRequiredFlags = fmt.Errorf("-file and -run-dir are required")

func countMode() string {
	if paMode {
		return "pa"
	}
	return "count"
}

func countWidth() format.CountWidth {
	switch countBits {
	case 8:
		return format.Count8
	case 16:
		return format.Count16
	default:
		return format.Count32
	}
}

func sampleIDs(samples []runctx.Sample) []string {
	ids := make([]string, len(samples))
	for i, s := range samples {
		ids[i] = s.ID
	}
	return ids
}

func mkdirs(rc *runctx.RunContext, sampleIDs []string) error {
	for _, dir := range rc.Dirs(sampleIDs) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &kerrors.IOError{Op: "mkdir", Path: dir, Err: err}
		}
	}
	return nil
}

func readFof(path string) ([]runctx.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &kerrors.InputError{Op: "kmtricks: open fof", Path: path, Err: err}
	}
	defer f.Close()
	base := filepath.Dir(path)
	samples, err := runctx.ParseFof(f)
	if err != nil {
		return nil, err
	}
	for i := range samples {
		for j, p := range samples[i].Paths {
			if !filepath.IsAbs(p) {
				samples[i].Paths[j] = filepath.Join(base, p)
			}
		}
		if samples[i].AbundanceMin == 0 {
			samples[i].AbundanceMin = abundanceMin
		}
	}
	return samples, nil
}

// buildRepartitionTable either loads an already-persisted table (a
// re-run over the same run directory) or builds a fresh one from a
// bounded sample of the first sample's reads (spec §4.4.1).
func buildRepartitionTable(rc *runctx.RunContext, samples []runctx.Sample) (*repartition.Table, error) {
	path := rc.RepartitionTablePath()
	if _, err := os.Stat(path); err == nil {
		return repartition.Load(path)
	}
	if len(samples) == 0 {
		return nil, &kerrors.InputError{Op: "kmtricks: repartition", Err: fmt.Errorf("no samples in descriptor")}
	}

	var seqs []string
	ctx := vcontext.Background()
	for _, p := range samples[0].Paths {
		r, err := bank.Open(ctx, p)
		if err != nil {
			return nil, err
		}
		it := bank.NewSeqIterator(r)
		for {
			seq, ok := it.Next()
			if !ok {
				break
			}
			seqs = append(seqs, seq)
		}
		r.Close(ctx)
	}
	src := repartition.NewSample(repartition.NewSliceSource(seqs), sampleFrac, sampleCap)

	order := kmer.OrderLex
	var ranks kmer.RankTable
	if freqOrder {
		ranks = repartition.CountFrequencies(repartition.NewSliceSource(seqs), rc.Config.MSize)
		order = kmer.OrderFrequency
	}

	table := repartition.Build(src, rc.Config.K, rc.Config.MSize, rc.Config.Partitions, order, ranks)
	if err := table.Save(path); err != nil {
		return nil, err
	}
	return table, nil
}

func writeHashInfo(rc *runctx.RunContext, hi runctx.HashInfo) error {
	f, err := os.Create(rc.HashInfoPath())
	if err != nil {
		return &kerrors.IOError{Op: "kmtricks: write hash.info", Path: rc.HashInfoPath(), Err: err}
	}
	defer f.Close()
	return runctx.WriteHashInfo(f, hi)
}

// binTask wraps one sample's full binning pass (every input file, every
// partition) as a pipeline.Task.
func binTask(ctx context.Context, rc *runctx.RunContext, table *repartition.Table, s runctx.Sample) pipeline.Task {
	return &fnTask{exec: func() error {
		order := kmer.OrderLex
		var ranks kmer.RankTable
		if table.HasFreq {
			order, ranks = kmer.OrderFrequency, table
		}
		b, err := binner.New(rc.SuperkmerDir(s.ID), binner.Config{
			K: rc.Config.K, M: rc.Config.MSize,
			Table: table, Order: order, Ranks: ranks,
			CacheBudget: cacheBudget,
		})
		if err != nil {
			return err
		}
		for _, p := range s.Paths {
			r, err := bank.Open(ctx, p)
			if err != nil {
				return err
			}
			it := bank.NewSeqIterator(r)
			for {
				seq, ok := it.Next()
				if !ok {
					break
				}
				if err := b.ProcessSequence(seq); err != nil {
					r.Close(ctx)
					return err
				}
			}
			if err := r.Close(ctx); err != nil {
				return err
			}
		}
		return b.Close()
	}}
}

// countTasks builds one counting task per partition for sample s, run
// once its binning pass has fully landed (spec §4.6, C6).
func countTasks(ctx context.Context, rc *runctx.RunContext, s runctx.Sample, table *repartition.Table, width format.CountWidth, kmerSlots int, hinfo runctx.HashInfo, hists *histAccumulator) []pipeline.Task {
	tasks := make([]pipeline.Task, table.P)
	for p := 0; p < table.P; p++ {
		p := p
		tasks[p] = &fnTask{exec: func() error {
			return countPartition(ctx, rc, s, p, width, kmerSlots, hinfo, hists)
		}}
	}
	return tasks
}

func countPartition(ctx context.Context, rc *runctx.RunContext, s runctx.Sample, p int, width format.CountWidth, kmerSlots int, hinfo runctx.HashInfo, hists *histAccumulator) error {
	sr, err := superkmer.OpenReader(rc.SuperkmerDir(s.ID), p)
	if err != nil {
		return err
	}
	defer sr.Close()

	outPath := countPath(rc, s.ID, p)
	var out *format.Writer
	if hashMode {
		out, err = format.Create(ctx, outPath, format.KindHashCount,
			format.HashCountHeader{CountSlots: width.Bytes(), SampleID: s.ID, Partition: p}, false)
	} else {
		out, err = format.Create(ctx, outPath, format.KindKmerCount,
			format.CountHeader{K: rc.Config.K, KmerSlots: kmerSlots, CountSlots: width.Bytes(), SampleID: s.ID, Partition: p}, false)
	}
	if err != nil {
		return err
	}

	hist := &counter.Histogram{}
	cfg := counter.Config{
		K: rc.Config.K, Width: width, AbundanceMin: s.AbundanceMin,
		SaveIfEnabled: saveIfThreshold > 0, HashMode: hashMode, SpillThreshold: spillEntries,
		Partition: p, WindowSizeBits: hinfo.WindowSizeBits,
	}
	if err := counter.HashAggregate(sr, rc.CountsPartitionDir(p), cfg, out, hist); err != nil {
		out.Close(ctx)
		return err
	}
	if err := out.Close(ctx); err != nil {
		return err
	}
	hists.add(s.ID, hist)
	return nil
}

// histAccumulator sums every sample's per-partition histograms into
// one per-sample total, since the *.hist file describes a whole
// sample (spec §3, Entity: Histogram) but counting runs one partition
// at a time, concurrently, across a sample's own partitions.
type histAccumulator struct {
	mu     sync.Mutex
	totals map[string]*counter.Histogram
}

func newHistAccumulator() *histAccumulator {
	return &histAccumulator{totals: make(map[string]*counter.Histogram)}
}

func (a *histAccumulator) add(sampleID string, partial *counter.Histogram) {
	a.mu.Lock()
	defer a.mu.Unlock()
	total, ok := a.totals[sampleID]
	if !ok {
		total = &counter.Histogram{}
		a.totals[sampleID] = total
	}
	for i := range total {
		total[i] += partial[i]
	}
}

func (a *histAccumulator) writeAll(ctx context.Context, rc *runctx.RunContext, k int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for sampleID, hist := range a.totals {
		if err := counter.WriteHistFile(ctx, rc.HistogramPath(sampleID), sampleID, k, hist); err != nil {
			return err
		}
	}
	return nil
}

func countPath(rc *runctx.RunContext, sampleID string, partition int) string {
	if hashMode {
		return rc.HashCountPath(partition, sampleID)
	}
	return rc.KmerCountPath(partition, sampleID)
}

// mergePartition runs the N-way merge for one partition once every
// sample's counting task for it has completed (spec §4.7, C7).
func mergePartition(ctx context.Context, rc *runctx.RunContext, samples []runctx.Sample, table *repartition.Table, partition int, width format.CountWidth, kmerSlots int, stats *merger.Stats) error {
	sources := make([]*merger.SampleSource, len(samples))
	abundance := make([]uint64, len(samples))
	for i, s := range samples {
		src, err := merger.OpenSampleSource(ctx, countPath(rc, s.ID, partition), hashMode, width, kmerSlots)
		if err != nil {
			return err
		}
		sources[i] = src
		abundance[i] = s.AbundanceMin
	}
	defer func() {
		for _, s := range sources {
			s.Close(ctx)
		}
	}()

	mode := merger.ModeAny
	switch solidity {
	case "all":
		mode = merger.ModeAll
	case "custom":
		mode = merger.ModeCustom
	}
	rMin := merger.ResolveRMin(mode, len(samples), rMinCustom)

	matrixPath := rc.MatrixPath(partition, hashMode, paMode, compressed)
	sink, err := newMatrixSink(ctx, rc, matrixPath, kmerSlots, len(samples), partition, width)
	if err != nil {
		return err
	}

	mcfg := merger.Config{N: len(samples), AbundanceMin: abundance, RMin: rMin, SaveIf: saveIfThreshold}
	if err := merger.Run(sources, mcfg, []merger.Sink{sink}, stats, nil); err != nil {
		sink.Close()
		return err
	}
	return sink.Close()
}

func newMatrixSink(ctx context.Context, rc *runctx.RunContext, path string, kmerSlots, n, partition int, width format.CountWidth) (merger.Sink, error) {
	id := filepath.Base(rc.Root)
	if paMode {
		return merger.NewPAMatrixSink(ctx, path, rc.Config.K, kmerSlots, n, hashMode, id, partition)
	}
	return merger.NewCountMatrixSink(ctx, path, rc.Config.K, kmerSlots, n, width, hashMode, id, partition)
}

func writeRunInfos(rc *runctx.RunContext, ri *runctx.RunInfo) error {
	ri.Stop()
	f, err := os.Create(rc.RunInfosPath())
	if err != nil {
		return &kerrors.IOError{Op: "kmtricks: write run_infos", Path: rc.RunInfosPath(), Err: err}
	}
	defer f.Close()
	return ri.Write(f, time.Now())
}

// fnTask adapts a plain closure to pipeline.Task for the bin/count
// tasks above, which need no per-task pre/postprocessing of their own
// beyond what the scheduler's wrappers already add.
type fnTask struct {
	exec func() error
}

func (t *fnTask) Preprocess()  {}
func (t *fnTask) Exec() error  { return t.exec() }
func (t *fnTask) Postprocess() {}
func (t *fnTask) Level() int   { return 0 }
