package engine

import "fmt"

// Rejection codes.
const (
	CodeNotFound          = "not_found"
	CodeInvalidState      = "invalid_state"
	CodeInsufficientFunds = "insufficient_funds"
	CodeCapacityExceeded  = "capacity_exceeded"
	CodeOverExhaustion    = "over_exhaustion"
	CodeDuplicate         = "duplicate"
	CodeBadRequest        = "bad_request"
)

// Rejection is a command validation failure: an expected, user-facing
// outcome that leaves state untouched. Programming defects panic with a
// domain.Defect instead.
type Rejection struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (r Rejection) Error() string { return r.Reason }

func reject(code, format string, args ...any) error {
	return Rejection{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a command rejection and unwraps it.
func IsRejection(err error) (Rejection, bool) {
	r, ok := err.(Rejection)
	return r, ok
}
