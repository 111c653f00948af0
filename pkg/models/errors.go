package models

import "errors"

// Sentinel errors for the graph core. Callers match these with errors.Is;
// wrapped variants carry the mode and operation context.
var (
	// ErrNoEntities is returned by discovery when the input entity set is empty or nil
	ErrNoEntities = errors.New("no entities supplied")

	// ErrNodeNotFound is returned by graph queries against an unknown node id
	ErrNodeNotFound = errors.New("node not found")

	// ErrManualOverride is returned when an automated write would downgrade
	// a manually-verified edge without the force flag
	ErrManualOverride = errors.New("edge is manually verified, use force to change")

	// ErrEdgeNotFound is returned by Override when the edge key does not exist
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrWriteConflict is returned when a concurrent write could not be
	// resolved after the internal retry
	ErrWriteConflict = errors.New("write conflict")
)
