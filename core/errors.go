package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrHandleNotReady = errors.New("canvas handle is not ready")
	ErrNothingToSave  = errors.New("nothing to save yet")
	ErrDesignActive   = errors.New("another design is already active")
)

// InitError reports that the drawing surface failed to start.
type InitError struct {
	Reason string
	Err    error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("canvas init: %s: %v", e.Reason, e.Err)
	}
	return "canvas init: " + e.Reason
}

func (e *InitError) Unwrap() error { return e.Err }

// DocumentError reports a canvas document that cannot be applied.
type DocumentError struct {
	// Index is the offending object position, or -1 for document-level problems.
	Index  int
	Reason string
	Err    error
}

func (e *DocumentError) Error() string {
	msg := "invalid canvas document"
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s: object %d", msg, e.Index)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DocumentError) Unwrap() error { return e.Err }

// AssetLoadError reports a garment or image bitmap that failed to load.
type AssetLoadError struct {
	Ref string
	Err error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load asset %q: %v", e.Ref, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// PersistenceError reports a failed load or save against the remote store.
type PersistenceError struct {
	Op       string
	DesignID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s design %s: %v", e.Op, e.DesignID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
