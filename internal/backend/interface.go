package backend

import (
	"context"
	"time"

	"tesouraria/internal/amqp"
	"tesouraria/internal/services"
	"tesouraria/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is an opened ledger plus the optional event bus.
type BackendResult struct {
	Ledger storage.Ledger
	// Bus is nil when AMQP is disabled or unreachable.
	Bus     *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the bus as an event publisher, or a nil interface when
// there is none.
func (r *BackendResult) Publisher() services.EventPublisher {
	if r.Bus == nil {
		return nil
	}
	return r.Bus
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type     BackendType
	Location *time.Location

	SQLiteDBPath string
	DatabaseURL  string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
