package domain

// ResultState tags a memoized computation.
type ResultState int

const (
	NotComputed ResultState = iota
	Succeeded
	Failed
)

// Result is a tagged success/failure value. The zero value is NotComputed.
type Result[T any] struct {
	state ResultState
	value T
	err   error
}

// Success returns a succeeded result holding v.
func Success[T any](v T) Result[T] {
	return Result[T]{state: Succeeded, value: v}
}

// Failure returns a failed result holding err.
func Failure[T any](err error) Result[T] {
	return Result[T]{state: Failed, err: err}
}

// State reports whether the result was computed and how it ended.
func (r Result[T]) State() ResultState {
	return r.state
}

// Computed is true once the result holds a value or an error.
func (r Result[T]) Computed() bool {
	return r.state != NotComputed
}

// Get returns the value or the error.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}
