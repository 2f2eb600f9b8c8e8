package core

import "errors"

var (
	// ErrUnauthorized is returned for missing or rejected credentials
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstreamUnavailable is returned when a mail or OAuth provider fails
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedMessage is returned when a single message cannot be parsed
	ErrMalformedMessage = errors.New("malformed message")
	// ErrClassifierCorrupt is returned when a persisted classifier cannot be decoded
	ErrClassifierCorrupt = errors.New("classifier record corrupt")
	// ErrNotFound is returned by repositories for missing records
	ErrNotFound = errors.New("record not found")
	// ErrExchangeFailed is returned when an authorization code is rejected
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrNotConfigured is returned when server-side credentials are missing
	ErrNotConfigured = errors.New("not configured")
)
