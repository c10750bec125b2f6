package fetch

// OutcomeKind classifies the result of an upstream fetch.
type OutcomeKind string

// Fetch outcome kinds. Transient outcomes are retryable; permanent and
// not-found outcomes are not.
const (
	// OutcomeFetched means new content was retrieved.
	OutcomeFetched OutcomeKind = "fetched"
	// OutcomeNotModified means the upstream copy matches the cached validators.
	OutcomeNotModified OutcomeKind = "not_modified"
	// OutcomeNotFound means the resource does not exist upstream.
	OutcomeNotFound OutcomeKind = "not_found"
	// OutcomeTransient means a retryable failure (5xx, timeout, network).
	OutcomeTransient OutcomeKind = "transient"
	// OutcomePermanent means a non-retryable failure.
	OutcomePermanent OutcomeKind = "permanent"
)

// Result is the outcome of one Fetch call. Body is only set for
// OutcomeFetched.
type Result struct {
	Kind       OutcomeKind
	Body       []byte
	StatusCode int
}

// Retryable reports whether the fetch is worth retrying.
func (r Result) Retryable() bool {
	return r.Kind == OutcomeTransient
}

// Error couples a fetch failure with its outcome so callers can tell
// retryable failures from permanent ones through the error chain.
type Error struct {
	Kind OutcomeKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt can succeed.
func (e *Error) Retryable() bool {
	return e.Kind == OutcomeTransient
}
