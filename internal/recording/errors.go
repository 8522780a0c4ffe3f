package recording

import "fmt"

// ErrorKind classifies errors reported through Handler.OnError.
type ErrorKind int

const (
	// DeviceUnavailable covers denied permission, missing or busy devices,
	// and failures while finalizing capture.
	DeviceUnavailable ErrorKind = iota + 1
)

func (k ErrorKind) String() string {
	switch k {
	case DeviceUnavailable:
		return "DeviceUnavailable"
	default:
		return "Unknown"
	}
}

// ErrDeviceUnavailable matches any *Error of kind DeviceUnavailable via errors.Is.
var ErrDeviceUnavailable = &Error{Kind: DeviceUnavailable, Message: "audio input device unavailable"}

// Error is the value passed to Handler.OnError.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func deviceUnavailable(msg string, err error) *Error {
	return &Error{Kind: DeviceUnavailable, Message: msg, Err: err}
}
