package permissions

import (
	"errors"
	"fmt"
)

// Status mirrors AVAuthorizationStatus.
type Status int

const (
	PermissionNotDetermined Status = 0
	PermissionRestricted    Status = 1
	PermissionDenied        Status = 2
	PermissionAuthorized    Status = 3
)

func (s Status) String() string {
	switch s {
	case PermissionNotDetermined:
		return "not determined"
	case PermissionRestricted:
		return "restricted"
	case PermissionDenied:
		return "denied"
	case PermissionAuthorized:
		return "authorized"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var (
	ErrMicrophoneDenied    = errors.New("microphone permission not granted")
	ErrAccessibilityDenied = errors.New("accessibility permission not granted")
)

// EnsureMicrophone returns nil when audio capture is allowed, prompting the
// user first if they have not decided yet.
func EnsureMicrophone() error {
	return ensure(CheckMicrophone(), RequestMicrophone)
}

func ensure(status Status, request func() bool) error {
	switch status {
	case PermissionAuthorized:
		return nil
	case PermissionNotDetermined:
		if request() {
			return nil
		}
	}
	return fmt.Errorf("%w (%s)", ErrMicrophoneDenied, status)
}
