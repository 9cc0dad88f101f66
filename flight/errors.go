package flight

import "errors"

// Error types for table registration.

var (
	// ErrNoTables is returned when creating a server with an empty table list.
	ErrNoTables = errors.New("at least one table is required")
	// ErrTableNotFound is returned when a requested table is not registered.
	ErrTableNotFound = errors.New("table not found")
	// ErrInvalidTable is returned when a table definition is incomplete.
	ErrInvalidTable = errors.New("invalid table")
)

// ErrDuplicateTable is returned during server creation if tables have duplicate names.
type ErrDuplicateTable struct {
	Name string
}

func (e ErrDuplicateTable) Error() string {
	return "duplicate table name: " + e.Name
}
