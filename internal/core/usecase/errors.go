package usecase

import "errors"

// Infrastructure failures are wrapped in ErrStoreUnavailable. Business
// outcomes are never reported as errors.
var ErrStoreUnavailable = errors.New("card store unavailable")
