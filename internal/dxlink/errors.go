package dxlink

import "errors"

var (
	ErrClosed       = errors.New("dxlink connection closed")
	ErrAuthRejected = errors.New("dxlink authorization rejected")
	ErrUnknownKind  = errors.New("event kind has no channel")
)
