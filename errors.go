package headway

import "fmt"

// InvalidStopError reports a source or target id that is not in the
// current snapshot.
type InvalidStopError struct {
	ID string
}

func (e *InvalidStopError) Error() string {
	return fmt.Sprintf("unknown stop %q", e.ID)
}
