package runctx

import "errors"

var errBadHashInfoMagic = errors.New("runctx: bad hash.info magic")
