package catalog

import "errors"

var (
	// ErrUnknownCID indicates a CID that is not present in the registry.
	ErrUnknownCID = errors.New("cid not present in registry")

	// ErrNoCID indicates an ingredient name that could not be assigned a
	// CID. Callers surface this instead of guessing.
	ErrNoCID = errors.New("no cid assignment for ingredient")

	// ErrEmptyName indicates a blank ingredient name after normalization.
	ErrEmptyName = errors.New("ingredient name is empty after normalization")
)
