package arcache

// ResultType classifies the outcome of a get.
type ResultType uint8

const (
	// Hit is a fresh value.
	Hit ResultType = iota
	// Miss means no usable value: absent, or hidden by a hard invalidation.
	Miss
	// Expired carries a value that this read observed as expired.
	Expired
	// Invalidated carries a value whose group was soft invalidated.
	Invalidated
	// Timeout means the budget ran out.
	Timeout
	// Error means a backend fault, an unexpected stored type or an
	// undecodable value.
	Error
)

func (t ResultType) String() string {
	switch t {
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case Expired:
		return "expired"
	case Invalidated:
		return "invalidated"
	case Timeout:
		return "timeout"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// HasValue reports whether a Result of this type carries a value.
func (t ResultType) HasValue() bool {
	return t == Hit || t == Expired || t == Invalidated
}

// Result is what a get observed. Value, StoreTimestampMillis and
// InvalidationKeys are set only when Type.HasValue(). InvalidatedKey names
// the group that caused Invalidated.
type Result[V any] struct {
	Type                 ResultType
	Value                V
	Err                  error
	InvalidationKeys     []string
	InvalidatedKey       string
	StoreTimestampMillis int64
}

func errResult[V any](err error) Result[V] {
	t, err := classify(err)
	return Result[V]{Type: t, Err: err}
}
