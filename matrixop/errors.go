package matrixop

import "errors"

var errNoInputs = errors.New("matrixop: no input files given")
var errTableMismatch = errors.New("matrixop: input runs do not share a byte-equal repartition table")
