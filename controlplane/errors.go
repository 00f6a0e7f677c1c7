package controlplane

import "errors"

var (
	// ErrPolicyNotFound indicates the provider has no policy for the requested key.
	ErrPolicyNotFound = errors.New("hostkit: policy not found")
	// ErrProviderUnavailable indicates the provider could not be used.
	ErrProviderUnavailable = errors.New("hostkit: policy provider unavailable")
)
