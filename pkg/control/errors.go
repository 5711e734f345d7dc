package control

import "fmt"

// TransportError indicates the control plane could not be reached or the
// connection broke mid-call. During monitoring this degrades to skipping the
// tick; during init/startup it is fatal to the daemon-level event.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("control plane transport failure on %q: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CallError indicates the control plane received the call and rejected it.
type CallError struct {
	Method  string
	Code    int
	Message string
}

func (e *CallError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}
