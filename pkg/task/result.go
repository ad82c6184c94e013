package task

// Result is what a settled Task holds. A canceled task holds ErrCanceled.
type Result[T any] struct {
	value T
	err   error
}

func valueResult[T any](v T) Result[T] { return Result[T]{value: v} }

func errorResult[T any](err error) Result[T] { return Result[T]{err: err} }

func (r Result[T]) Value() (T, error) {
	return r.value, r.err
}
