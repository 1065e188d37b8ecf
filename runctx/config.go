package runctx

import (
	"syscall"

	"github.com/grailbio/base/log"
)

// Config is a run's resolved set of pipeline knobs (spec §6's CLI
// surface plus the environment-derived adjustments spec §6's
// "Environment" paragraph requires).
type Config struct {
	K                int
	MSize            int // minimizer length m
	Partitions       int
	Threads          int
	Focus            float64
	AbundanceMin     uint64
	Mode             string // count / kmer / hash / bloom ...
	KeepTmp          bool
	MaxOpenFiles     uint64
	MergeParallelism int
}

// NewConfig resolves a Config from CLI-supplied values, then probes
// the process's open-file limit and reduces Partitions or halves
// MergeParallelism until P <= max_open_files/2 (spec §6: "Max open
// files is probed at startup and partition count is reduced or
// merging parallelism halved"), following kmtricks's
// SystemInfoCommon.cpp/MemoryCommon.hpp approach of deriving a hard
// operational ceiling from the environment rather than assuming one.
func NewConfig(k, mSize, partitions, threads int, focus float64, abundanceMin uint64, mode string, keepTmp bool) Config {
	cfg := Config{
		K: k, MSize: mSize, Partitions: partitions, Threads: threads,
		Focus: focus, AbundanceMin: abundanceMin, Mode: mode, KeepTmp: keepTmp,
		MergeParallelism: threads,
	}
	cfg.MaxOpenFiles = probeMaxOpenFiles()
	cfg.fitToOpenFileLimit()
	return cfg
}

func probeMaxOpenFiles() uint64 {
	var rl syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl); err != nil {
		log.Printf("runctx: could not probe RLIMIT_NOFILE, assuming 1024: %v", err)
		return 1024
	}
	return rl.Cur
}

// fitToOpenFileLimit mutates cfg in place so that P <= max_open_files/2
// (spec §6). Merging concurrently holds MergeParallelism partitions'
// worth of per-sample file handles open at once, so halving it is the
// cheap first lever; if P alone already exceeds the ceiling even with
// merges fully serialized, the partition count itself must shrink,
// which is only safe to apply before C4 builds the repartition table.
func (c *Config) fitToOpenFileLimit() {
	ceiling := c.MaxOpenFiles / 2
	if ceiling == 0 {
		ceiling = 1
	}
	if uint64(c.Partitions) > ceiling {
		for c.MergeParallelism > 1 {
			c.MergeParallelism /= 2
		}
	}
	for uint64(c.Partitions) > ceiling && c.Partitions > 1 {
		old := c.Partitions
		c.Partitions /= 2
		log.Printf("runctx: reducing partitions %d -> %d to respect max_open_files=%d", old, c.Partitions, c.MaxOpenFiles)
	}
	if c.Partitions < 1 {
		c.Partitions = 1
	}
}
