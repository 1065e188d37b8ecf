package matrixop

import (
	"github.com/kmtricks-go/kmtricks/kerrors"
	"github.com/kmtricks-go/kmtricks/repartition"
)

// CheckMergeable enforces spec §4.8's merge precondition: every run
// being merged must share a byte-equal repartition table and, by
// extension, the same k. Merge itself never sees the tables (only
// Source, already opened against one partition file); callers load
// the tables and check this before opening sources.
func CheckMergeable(tables []*repartition.Table) error {
	for i := 1; i < len(tables); i++ {
		if !repartition.Mergeable(tables[0], tables[i]) {
			return &kerrors.InputError{Op: "matrixop.Merge", Err: errTableMismatch}
		}
	}
	return nil
}
