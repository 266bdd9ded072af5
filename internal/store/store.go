// Package store provides the persistent ledger store: a key-value
// surface for snapshots (contracts, balances, performance) plus
// append-only log streams (insights, terminations, evaluations,
// feedback, enforcement). Values are opaque bytes; components marshal
// their own JSON. Implementations must provide read-after-write
// consistency within a single process.
package store

// Log stream names used across the engine.
const (
	StreamInsights     = "insights"
	StreamTerminations = "terminations"
	StreamEvaluations  = "evaluations"
	StreamFeedback     = "feedback"
	StreamEnforcement  = "enforcement"
	StreamExtinctions  = "extinctions"
	StreamCycles       = "cycles"
)

// Key prefixes for snapshot records.
const (
	PrefixContract    = "contract/"
	PrefixPerformance = "performance/"
	PrefixFeedback    = "feedback_metrics/"
	KeyLedger         = "ledger/current"
)

// Store is the abstract ledger store.
type Store interface {
	// Get returns the value for key. The second return is false when
	// the key is absent.
	Get(key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error

	// ListByPrefix returns all key/value pairs whose key starts with
	// prefix.
	ListByPrefix(prefix string) (map[string][]byte, error)

	// Append adds an entry to the named append-only stream.
	Append(stream string, entry []byte) error

	// ReadLog returns all entries of a stream in append order.
	ReadLog(stream string) ([][]byte, error)

	// Close releases the underlying resources.
	Close() error
}
