//go:build !darwin

package permissions

// CheckMicrophone always reports authorized; access is enforced by the
// audio server on other platforms.
func CheckMicrophone() Status {
	return PermissionAuthorized
}

func RequestMicrophone() bool {
	return true
}

// EnsureAccessibility is a no-op on non-macOS platforms.
func EnsureAccessibility() error {
	return nil
}
