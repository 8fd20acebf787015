package svc

import "errors"

// ErrNoFeedsEnabled: no price feed could be built.
var ErrNoFeedsEnabled = errors.New("no price feeds enabled")

// ErrStorageInitFailed wraps any storage backend startup error.
var ErrStorageInitFailed = errors.New("storage initialization failed")
