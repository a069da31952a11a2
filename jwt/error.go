package jwt

import "errors"

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrInvalidSignature     = errors.New("invalid signature")
)
