package audit

import "context"

// Store persists audit events. Implementations decide durability: the memory
// store keeps them for tests and single-process runs, the Kafka sink hands
// them to a broker.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
