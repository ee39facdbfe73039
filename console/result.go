package console

// Status is the outcome class of a console operation.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not found"
	case StatusFailure:
		return "failure"
	}
	return "unknown"
}

// Result is what every console operation returns: a value on success, or
// a NotFound / Failure status. Err is a *Error whenever Status is not Success.
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool { return r.Status == StatusSuccess }

// Kind returns the failure kind, or 0 on success.
func (r Result[T]) Kind() Kind { return KindOf(r.Err) }

func success[T any](v T) Result[T] {
	return Result[T]{Status: StatusSuccess, Value: v}
}

func notFound[T any](err *Error) Result[T] {
	return Result[T]{Status: StatusNotFound, Err: err}
}

func failure[T any](err *Error) Result[T] {
	return Result[T]{Status: StatusFailure, Err: err}
}
