package collect

import "errors"

var (
	ErrNoExpirations = errors.New("option chain has no expirations")
)
