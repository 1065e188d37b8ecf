package runctx

import (
	"fmt"
	"path/filepath"
)

// RunContext is the explicit value threaded through the pipeline in
// place of a global run directory singleton (spec §9's "re-express
// KmDir as a RunContext value passed explicitly"): the root path, the
// resolved Config, and an Eraser for deferred temp-file cleanup.
type RunContext struct {
	Root   string
	Config Config
	Eraser *Eraser
}

// NewRunContext wires root and cfg into a RunContext with its own
// Eraser goroutine; callers must Close it when the run finishes.
func NewRunContext(root string, cfg Config) *RunContext {
	return &RunContext{Root: root, Config: cfg, Eraser: NewEraser()}
}

// Close stops the RunContext's Eraser goroutine.
func (c *RunContext) Close() { c.Eraser.Close() }

// The directory layout below matches spec §4.11's tree verbatim.

func (c *RunContext) OptionsPath() string      { return filepath.Join(c.Root, "options.txt") }
func (c *RunContext) HashInfoPath() string     { return filepath.Join(c.Root, "hash.info") }
func (c *RunContext) ConfigGatbDir() string    { return filepath.Join(c.Root, "config_gatb") }
func (c *RunContext) RepartitionDir() string   { return filepath.Join(c.Root, "repartition_gatb") }
func (c *RunContext) RepartitionTablePath() string {
	return filepath.Join(c.RepartitionDir(), "repartition.minimRepart")
}
func (c *RunContext) FofPath() string { return filepath.Join(c.Root, "kmtricks.fof") }

func (c *RunContext) SuperkmerDir(sampleID string) string {
	return filepath.Join(c.Root, "superkmers", sampleID)
}
func (c *RunContext) SuperkmerSkpPath(sampleID string, partition int) string {
	return filepath.Join(c.SuperkmerDir(sampleID), fmt.Sprintf("skp.%d", partition))
}
func (c *RunContext) PartiInfoPath(sampleID string) string {
	return filepath.Join(c.SuperkmerDir(sampleID), "PartiInfoFile")
}
func (c *RunContext) SuperKmerBinInfoPath(sampleID string) string {
	return filepath.Join(c.SuperkmerDir(sampleID), "SuperKmerBinInfoFile")
}

func (c *RunContext) CountsPartitionDir(partition int) string {
	return filepath.Join(c.Root, "counts", fmt.Sprintf("partition_%d", partition))
}
func (c *RunContext) KmerCountPath(partition int, sampleID string) string {
	return filepath.Join(c.CountsPartitionDir(partition), sampleID+".kmer")
}
func (c *RunContext) HashCountPath(partition int, sampleID string) string {
	return filepath.Join(c.CountsPartitionDir(partition), sampleID+".hash")
}

// MatrixExt enumerates the four matrix_<p> file extensions spec §4.11
// names; hashMode and isPA select which one applies.
func MatrixExt(hashMode, isPA bool) string {
	switch {
	case !hashMode && !isPA:
		return "count"
	case hashMode && !isPA:
		return "count_hash"
	case !hashMode && isPA:
		return "pa"
	default:
		return "pa_hash"
	}
}

func (c *RunContext) MatricesDir() string { return filepath.Join(c.Root, "matrices") }
func (c *RunContext) MatrixPath(partition int, hashMode, isPA, compressed bool) string {
	name := fmt.Sprintf("matrix_%d.%s", partition, MatrixExt(hashMode, isPA))
	if compressed {
		name += ".lz4"
	}
	return filepath.Join(c.MatricesDir(), name)
}

func (c *RunContext) HistogramsDir() string { return filepath.Join(c.Root, "histograms") }
func (c *RunContext) HistogramPath(sampleID string) string {
	return filepath.Join(c.HistogramsDir(), sampleID+".hist")
}

func (c *RunContext) RunInfosPath() string { return filepath.Join(c.Root, "run_infos.txt") }

// Dirs returns every directory that must exist before a run can write
// to it, in creation order (parents before children).
func (c *RunContext) Dirs(sampleIDs []string) []string {
	dirs := []string{c.Root, c.ConfigGatbDir(), c.RepartitionDir(), c.MatricesDir(), c.HistogramsDir()}
	for _, id := range sampleIDs {
		dirs = append(dirs, c.SuperkmerDir(id))
	}
	for p := 0; p < c.Config.Partitions; p++ {
		dirs = append(dirs, c.CountsPartitionDir(p))
	}
	return dirs
}
