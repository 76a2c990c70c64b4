package services

import "errors"

var (
	// ErrNotReady is returned by write paths invoked before the catalog was
	// reconciled by the loader.
	ErrNotReady = errors.New("catalog is not loaded yet")

	ErrAlreadyLoaded  = errors.New("catalog already loaded")
	ErrRecordNotFound = errors.New("record not found")

	// ErrImportFormat is returned when an import payload is not a JSON array.
	ErrImportFormat = errors.New("import must be a JSON array of records")

	ErrEmptyDraft   = errors.New("draft has no prompt text")
	ErrUnknownField = errors.New("unknown draft field")
	ErrDraftClosed  = errors.New("draft form is not open")
)
