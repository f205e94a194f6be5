// Package terr defines the error taxonomy shared by ingestion and
// query handling (spec §7): upstream failures and parse failures are
// swallowed with telemetry inside ingestion, while NoPath/InvalidRequest
// are surfaced to the HTTP layer as 404/400.
package terr

import "errors"

var (
	// ErrUpstreamUnavailable marks an HTTP failure or non-OK status
	// from an upstream feed. The refresh cycle never aborts because of
	// it; the affected subset is absent from the snapshot that cycle
	// publishes (its data from the prior snapshot is not carried over).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrParseFailure marks a malformed time or record. The record is
	// skipped; other records in the same feed are unaffected.
	ErrParseFailure = errors.New("parse failure")

	// ErrUnknownStop marks a stop id absent from the directory. Never
	// fatal: callers fall back to surfacing the id as its own name.
	ErrUnknownStop = errors.New("unknown stop")

	// ErrUnresolvedVehicle marks a tube vehicle whose route/interval
	// could not be identified. Its raw observed stops are published
	// unchanged, never blended with a resolved vehicle's predictions.
	ErrUnresolvedVehicle = errors.New("unresolved vehicle")

	// ErrNoPath marks an engine run that produced no label at the
	// destination. Surfaces as HTTP 404.
	ErrNoPath = errors.New("no path")

	// ErrInvalidRequest marks a missing/empty origin or destination.
	// Surfaces as HTTP 400.
	ErrInvalidRequest = errors.New("invalid request")
)
