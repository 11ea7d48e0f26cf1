package domain

import "errors"

// WriteStatus tags the outcome of a multi-step write.
type WriteStatus int

const (
	// WriteSucceeded means every step landed.
	WriteSucceeded WriteStatus = iota
	// WritePartial means the primary write landed but a best-effort step failed.
	WritePartial
	// WriteFailed means the primary write did not land.
	WriteFailed
)

func (s WriteStatus) String() string {
	switch s {
	case WriteSucceeded:
		return "succeeded"
	case WritePartial:
		return "partial"
	case WriteFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets the status travel as a string in JSON payloads.
func (s WriteStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WriteResult reports what a write operation achieved.
type WriteResult struct {
	Status WriteStatus `json:"status"`
	ID     string      `json:"id,omitempty"`
	Err    error       `json:"-"`
}

// Succeeded is true when the primary write landed, even if a follow-up step failed.
func (r WriteResult) Succeeded() bool {
	return r.Status != WriteFailed
}

// Succeeded builds a clean result.
func Succeeded(id string) WriteResult {
	return WriteResult{Status: WriteSucceeded, ID: id}
}

// Failed builds a result for a write whose primary step did not land.
func Failed(id string, errs ...error) WriteResult {
	return WriteResult{Status: WriteFailed, ID: id, Err: errors.Join(errs...)}
}

// Settle returns Succeeded when no best-effort step failed and Partial otherwise.
func Settle(id string, stepErrs []error) WriteResult {
	err := errors.Join(stepErrs...)
	if err == nil {
		return Succeeded(id)
	}
	return WriteResult{Status: WritePartial, ID: id, Err: err}
}
