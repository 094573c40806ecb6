package bridge

import "fmt"

// WrongStateError reports an operation applied to a session in a state that
// does not accept it. These are caller bugs: logged at warn, then ignored.
type WrongStateError struct {
	Op    string
	State State
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("wrong state: cannot %s while %s", e.Op, e.State)
}

var _ error = (*WrongStateError)(nil)
