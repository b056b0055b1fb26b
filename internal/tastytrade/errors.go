package tastytrade

import "errors"

var (
	ErrNotFound     = errors.New("instrument not found")
	ErrRateLimited  = errors.New("rate limited by API")
	ErrAuthFailed   = errors.New("authentication failed")
	ErrNoSession    = errors.New("not logged in")
	ErrNoExpiration = errors.New("no options for expiration")
)
