package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one input of a batch operation.
// Index is the position of the input in the caller's sequence.
type Result struct {
	index  int
	id     string
	vector []float32
	status ItemStatus
	err    error
}

// NewOK creates a successful result for an identified item.
func NewOK(index int, id string) Result {
	return Result{index: index, id: id, status: StatusOK}
}

// NewVector creates a successful embedding result.
func NewVector(index int, vector []float32) Result {
	return Result{index: index, vector: vector, status: StatusOK}
}

// NewError creates a failed result.
func NewError(index int, id string, err error) Result {
	return Result{index: index, id: id, status: StatusError, err: err}
}

// Index returns the position of the item in the caller's input.
func (r Result) Index() int { return r.index }

// ID returns the item identifier, if the item has one.
func (r Result) ID() string { return r.id }

// Vector returns the embedding of a successful embedding item.
func (r Result) Vector() []float32 { return r.vector }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// OK reports whether the item succeeded.
func (r Result) OK() bool { return r.status == StatusOK }

// Failed returns the failed items, preserving order.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
