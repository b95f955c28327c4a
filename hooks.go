package arcache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The client calls them on hot paths.
type Hooks interface {
	// An Await on a get task finished. Cancelled tasks are not reported.
	GetCompleted(t ResultType, took time.Duration)

	// The backend returned something other than an object under an object key.
	EnvelopeTypeMismatch(backendKey, got string)

	// The stored payload could not be decoded by the codec.
	ValueDecodeError(backendKey string, err error)

	// A group record was not an invalidation record and was skipped.
	InvalidationRecordIgnored(group, got string)

	// A sub-fetch got more time than the budget had left because the process
	// was slow rather than the backend.
	TimeoutRelaxed(remaining, allotted time.Duration)

	// Backend returned ok=false on Set (backpressure/eviction).
	BackendSetRejected(backendKey string)

	// The previous record of a group could not be read; the new record is
	// written without history.
	PriorInvalidationUnreadable(group string, err error)

	// A group invalidation was stored.
	InvalidationWritten(group string, hard bool)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) GetCompleted(ResultType, time.Duration)      {}
func (NopHooks) EnvelopeTypeMismatch(string, string)         {}
func (NopHooks) ValueDecodeError(string, error)              {}
func (NopHooks) InvalidationRecordIgnored(string, string)    {}
func (NopHooks) TimeoutRelaxed(time.Duration, time.Duration) {}
func (NopHooks) BackendSetRejected(string)                   {}
func (NopHooks) PriorInvalidationUnreadable(string, error)   {}
func (NopHooks) InvalidationWritten(string, bool)            {}
