package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNotClaimable    = errors.New("job not claimable")
	ErrMissingArtifact = errors.New("missing artifact")
	ErrEmptyOutput     = errors.New("empty render output")
	ErrProviderFailure = errors.New("provider failure")
)
