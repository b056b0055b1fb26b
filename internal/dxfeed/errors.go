package dxfeed

import "errors"

var ErrUnknownEvent = errors.New("unknown event type")
