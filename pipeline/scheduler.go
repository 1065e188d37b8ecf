package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// pollInterval is the scheduler's throttle-check cadence. A receive
// from a time.Ticker is the idiomatic replacement for the C++ source's
// explicit spin-and-sleep poll loop — same throttling policy, a more
// natural wait primitive (spec: "keep HOW, replace WHAT" applies to
// the policy, not the exact wait mechanism).
const pollInterval = 20 * time.Millisecond

// SampleJob bundles one sample's binning task with a factory for the
// P counting tasks that binning unblocks (spec §4.10: "each sample
// has one binning task and P counting tasks, one per partition").
// MakeCounting is called only after Bin.Exec has returned, so within a
// sample binning always completes-before any of its counting tasks
// start.
type SampleJob struct {
	Bin          Task
	MakeCounting func() []Task // len must equal the scheduler's partition count
}

// Scheduler interleaves a run's per-sample binning tasks with their
// follow-on counting tasks, throttling how many binning tasks are
// in flight at once so counting never starves for workers (spec
// §4.10's pipeline scheduler).
type Scheduler struct {
	pool       *Pool
	t          int
	focus      float64
	partitions int

	mu            sync.Mutex
	maxRunning    int
	throttled     bool
	inFlight      int
	queue         []SampleJob
	countingDone  []int32 // per-partition count of samples that finished counting it
	nSamples      int32
	mergeFired    []int32
	onPartition   func(partition int) // invoked exactly once per partition, once every sample has counted it
}

// NewScheduler builds a scheduler over pool's T workers. focus is the
// run parameter in (0,1] bounding the fraction of T given to binning
// at once; partitions is P, used to know when a partition's counting
// is complete across all samples.
func NewScheduler(pool *Pool, t int, focus float64, partitions int) *Scheduler {
	if focus <= 0 || focus > 1 {
		focus = 1
	}
	maxRunning := int(float64(t) * focus)
	if maxRunning < 1 {
		maxRunning = 1
	}
	return &Scheduler{
		pool:         pool,
		t:            t,
		focus:        focus,
		partitions:   partitions,
		maxRunning:   maxRunning,
		countingDone: make([]int32, partitions),
		mergeFired:   make([]int32, partitions),
	}
}

// OnPartitionComplete registers a callback fired once, the first time
// every sample has finished counting partition p (spec §4.10:
// "merging for partition p is started only after all samples have
// finished counting partition p").
func (s *Scheduler) OnPartitionComplete(fn func(partition int)) {
	s.onPartition = fn
}

// Run launches jobs' binning tasks under the adaptive throttle and
// blocks until every binning and counting task it spawned has
// finished. It does not itself run merging; callers drive that from
// OnPartitionComplete or after Run returns.
func (s *Scheduler) Run(jobs []SampleJob) error {
	s.nSamples = int32(len(jobs))
	s.queue = append([]SampleJob(nil), jobs...)

	var wg sync.WaitGroup
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		s.mu.Lock()
		launched := false
		for len(s.queue) > 0 && s.inFlight < s.maxRunning && !s.pool.Cancelled() {
			job := s.queue[0]
			s.queue = s.queue[1:]
			s.inFlight++
			wg.Add(1)
			s.pool.AddTask(&binWrapper{inner: job.Bin, sched: s, job: job, wg: &wg})
			launched = true
		}
		done := len(s.queue) == 0
		saturated := !done && s.inFlight >= s.maxRunning
		s.mu.Unlock()
		if done || s.pool.Cancelled() {
			break
		}
		if saturated {
			s.throttle()
		}
		if !launched {
			<-ticker.C
		}
	}
	wg.Wait()
	return nil
}

// throttle implements the halving rule: the first time a launch
// attempt finds max_running already saturated at T, it permanently
// halves max_running, leaving headroom for counting tasks to run
// alongside the remaining in-flight binning tasks (spec §4.10:
// "if max_running == T it halves on the first throttling hit").
func (s *Scheduler) throttle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.throttled && s.maxRunning == s.t {
		s.maxRunning = s.maxRunning / 2
		if s.maxRunning < 1 {
			s.maxRunning = 1
		}
		s.throttled = true
	}
}

func (s *Scheduler) binningFinished(job SampleJob, wg *sync.WaitGroup) {
	s.mu.Lock()
	s.inFlight--
	if s.inFlight >= s.maxRunning {
		s.mu.Unlock()
		s.throttle()
	} else {
		s.mu.Unlock()
	}

	counting := job.MakeCounting()
	for p, t := range counting {
		wg.Add(1)
		s.pool.AddTask(&countWrapper{inner: t, sched: s, partition: p, wg: wg})
	}
	wg.Done()
}

func (s *Scheduler) countingFinished(partition int) {
	total := atomic.AddInt32(&s.countingDone[partition], 1)
	if total == s.nSamples && atomic.CompareAndSwapInt32(&s.mergeFired[partition], 0, 1) {
		if s.onPartition != nil {
			s.onPartition(partition)
		}
	}
}

// binWrapper adapts a SampleJob's binning Task into the pool's Task
// interface, fanning its completion into the scheduler's bookkeeping
// rather than requiring every caller to wire a callback by hand.
type binWrapper struct {
	inner Task
	sched *Scheduler
	job   SampleJob
	wg    *sync.WaitGroup
	err   error
}

func (b *binWrapper) Preprocess()  { b.inner.Preprocess() }
func (b *binWrapper) Exec() error  { b.err = b.inner.Exec(); return b.err }
func (b *binWrapper) Level() int   { return b.inner.Level() }
func (b *binWrapper) Postprocess() {
	b.inner.Postprocess()
	b.sched.binningFinished(b.job, b.wg)
}

type countWrapper struct {
	inner     Task
	sched     *Scheduler
	partition int
	wg        *sync.WaitGroup
}

func (c *countWrapper) Preprocess() { c.inner.Preprocess() }
func (c *countWrapper) Exec() error { return c.inner.Exec() }
func (c *countWrapper) Level() int  { return c.inner.Level() }
func (c *countWrapper) Postprocess() {
	c.inner.Postprocess()
	c.sched.countingFinished(c.partition)
	c.wg.Done()
}
