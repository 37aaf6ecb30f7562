package federation

import "errors"

var (
	// ErrSessionNotFound is returned when a search session does not exist
	// or belongs to another user.
	ErrSessionNotFound = errors.New("federation: search session not found")

	// ErrJobNotFound is returned when an ingestion job does not exist
	// or belongs to another user.
	ErrJobNotFound = errors.New("federation: ingest job not found")

	// ErrEmptySelection is returned when an ingestion request selects
	// no result from its session.
	ErrEmptySelection = errors.New("federation: no results selected for ingestion")

	// ErrInvalidInput is returned for malformed requests (empty query,
	// unknown persist mode, missing user).
	ErrInvalidInput = errors.New("federation: invalid input")
)
