package matrixop

import (
	"context"

	"github.com/kmtricks-go/kmtricks/format"
	"github.com/kmtricks-go/kmtricks/kerrors"
)

// Aggregate implements spec §4.8's aggregate operation: it concatenates
// records from inputs, which must all share the same header geometry
// (same kind, key width, sample count), in file order. It preserves
// sortedness within each input but not across — callers must only use
// this when inputs are already disjoint by key.
//
// newHeader must return a fresh pointer to the kind's header struct
// each call (format.Open decodes into it in place).
func Aggregate(ctx context.Context, kind format.Kind, newHeader func() interface{}, outPath string, inputs []string) error {
	if len(inputs) == 0 {
		return &kerrors.InputError{Op: "matrixop.Aggregate", Err: errNoInputs}
	}

	firstHdr := newHeader()
	first, err := format.Open(ctx, inputs[0], kind, firstHdr)
	if err != nil {
		return err
	}
	w, err := format.Create(ctx, outPath, kind, firstHdr, true)
	if err != nil {
		first.Close(ctx)
		return err
	}
	if err := copyRecords(first, w); err != nil {
		first.Close(ctx)
		w.Close(ctx)
		return err
	}
	if err := first.Close(ctx); err != nil {
		w.Close(ctx)
		return err
	}

	for _, path := range inputs[1:] {
		hdr := newHeader()
		r, err := format.Open(ctx, path, kind, hdr)
		if err != nil {
			w.Close(ctx)
			return err
		}
		if err := copyRecords(r, w); err != nil {
			r.Close(ctx)
			w.Close(ctx)
			return err
		}
		if err := r.Close(ctx); err != nil {
			w.Close(ctx)
			return err
		}
	}
	return w.Close(ctx)
}

func copyRecords(r *format.Reader, w *format.Writer) error {
	var buf []byte
	for {
		ok, err := r.ReadRecord(&buf)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := w.WriteRecord(buf); err != nil {
			return err
		}
	}
}
