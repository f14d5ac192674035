package wire

import "errors"

var (
	errInvalidMagic     = errors.New("wire: invalid frame magic")
	errChecksumMismatch = errors.New("wire: frame checksum mismatch")
)
