package counter

import "errors"

var errInvalidBase = errors.New("counter: invalid base in super-k-mer payload")

var errWideKeyUnsupported = errors.New("counter: RadixVector strategy requires k<=32 unless hash-indexed")
