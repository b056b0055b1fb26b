package output

import "errors"

var (
	ErrUnknownFormat = errors.New("unknown output format")
	ErrNoCandle      = errors.New("no candle to write")
	ErrS3Disabled    = errors.New("s3 upload disabled")
)
