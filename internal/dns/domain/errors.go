package domain

import "errors"

var (
	// ErrNotFound is returned when a zone or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a zone whose name is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidZone wraps validation failures on zone metadata.
	ErrInvalidZone = errors.New("invalid zone")
	// ErrInvalidRecord wraps validation failures on a record.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnsupportedType is returned for record types outside RecordTypes.
	ErrUnsupportedType = errors.New("unsupported record type")
	// ErrInvalidSettings wraps validation failures on server settings.
	ErrInvalidSettings = errors.New("invalid settings")
)
