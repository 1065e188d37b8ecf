package format

import (
	"errors"
	"fmt"
)

var (
	errBadMagic     = errors.New("bad magic")
	errWrongKind    = errors.New("wrong kind for this reader")
	errNoRecordSize = errors.New("record size not configured")
)

func errRecordSize(got, want int) error {
	return fmt.Errorf("record size mismatch: got %d, want %d", got, want)
}
