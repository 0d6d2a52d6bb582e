package tracing

// A Namespace is the trace context type produced by the default context
// factory. It is a mutable bag of values private to one request's trace,
// letting a chain of listeners correlate events within that request (e.g.,
// record a start time on request_start and compute the elapsed time on
// request_end).
//
// A Namespace is not safe for concurrent use. It never is shared between
// requests: the factory produces a fresh instance per trace.
type Namespace struct {
	// RequestCtx carries the per-request seed value the pipeline caller
	// passed when the trace was created.
	RequestCtx any

	values map[string]any
}

// NewNamespace creates an empty Namespace carrying the given seed value.
func NewNamespace(requestCtx any) *Namespace {
	return &Namespace{RequestCtx: requestCtx}
}

// Set stores a value under key, replacing any previous value.
func (n *Namespace) Set(key string, v any) {
	if n.values == nil {
		n.values = make(map[string]any)
	}
	n.values[key] = v
}

// Get returns the value stored under key, and whether it is present.
func (n *Namespace) Get(key string) (any, bool) {
	v, ok := n.values[key]
	return v, ok
}

// Value returns the value stored under key, or nil if absent.
func (n *Namespace) Value(key string) any {
	return n.values[key]
}
