package mojang

import "errors"

var (
	// ErrNotFound means the account does not exist (or no longer exists) upstream.
	ErrNotFound = errors.New("profile not found")
	// ErrUpstream covers transport failures and unexpected upstream statuses.
	ErrUpstream = errors.New("upstream error")
	// ErrDecode means an upstream body could not be understood.
	ErrDecode = errors.New("malformed upstream payload")
)
