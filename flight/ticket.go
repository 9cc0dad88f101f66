package flight

import (
	"fmt"

	"github.com/hugr-lab/lakesoul-go/internal/msgpack"
)

// Ticket is the decoded content of a Flight ticket: which table to scan and
// how. Tickets travel as MessagePack maps so that clients in any language can
// build them.
type Ticket struct {
	// Table is the registered table name.
	Table string `msgpack:"table"`

	// Filters holds serialized predicates, combined with AND
	// (e.g. "gt(amount, 100)").
	Filters []string `msgpack:"filters,omitempty"`

	// Columns to project (optional, nil means all columns).
	Columns []string `msgpack:"columns,omitempty"`

	// BatchSize overrides the table's batch size when positive.
	BatchSize int `msgpack:"batch_size,omitempty"`
}

// EncodeTicket serializes a ticket.
// Returns error if the table name is empty or encoding fails.
func EncodeTicket(t Ticket) ([]byte, error) {
	if t.Table == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}
	if t.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be non-negative, got %d", t.BatchSize)
	}

	data, err := msgpack.Encode(&t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return data, nil
}

// DecodeTicket parses an opaque ticket. Unknown keys are rejected.
func DecodeTicket(ticketBytes []byte) (*Ticket, error) {
	if len(ticketBytes) == 0 {
		return nil, fmt.Errorf("ticket cannot be empty")
	}

	var ticket Ticket
	if err := msgpack.DecodeStrict(ticketBytes, &ticket); err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}

	if ticket.Table == "" {
		return nil, fmt.Errorf("decoded ticket has empty table name")
	}
	if ticket.BatchSize < 0 {
		return nil, fmt.Errorf("batch_size must be non-negative, got %d", ticket.BatchSize)
	}

	return &ticket, nil
}
