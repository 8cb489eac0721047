package domain

import "fmt"

// Defect marks a broken internal invariant: a programming error, never a
// user-facing condition. Defects abort the current operation by panicking;
// nothing in the core recovers from them.
type Defect struct {
	Msg string
}

func (d Defect) Error() string { return "defect: " + d.Msg }

// Check panics with a Defect unless cond holds.
func Check(cond bool, format string, args ...any) {
	if !cond {
		panic(Defect{Msg: fmt.Sprintf(format, args...)})
	}
}
