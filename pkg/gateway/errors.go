package gateway

import "errors"

// ErrBlocked indicates the fiscal code is on the blocklist. It is propagated
// as forbidden and never retried.
var ErrBlocked = errors.New("gateway: user is blocked")
