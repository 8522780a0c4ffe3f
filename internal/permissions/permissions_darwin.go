//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation -framework Cocoa
#import <AVFoundation/AVFoundation.h>
#import <Cocoa/Cocoa.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

int requestMicrophonePermission() {
    dispatch_semaphore_t sem = dispatch_semaphore_create(0);
    __block BOOL ok = NO;
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {
        ok = granted;
        dispatch_semaphore_signal(sem);
    }];
    dispatch_semaphore_wait(sem, DISPATCH_TIME_FOREVER);
    return ok ? 1 : 0;
}

int checkAccessibilityPermission() {
    NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: @YES};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options) ? 1 : 0;
}
*/
import "C"

import "fmt"

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() Status {
	return Status(C.checkMicrophonePermission())
}

// RequestMicrophone shows the system permission dialog and blocks until the
// user answers.
func RequestMicrophone() bool {
	return C.requestMicrophonePermission() == 1
}

// CheckAccessibility checks if the app has accessibility permissions (needed for hotkeys).
// The system prompt is shown when it has not been granted.
func CheckAccessibility() bool {
	return C.checkAccessibilityPermission() == 1
}

// EnsureAccessibility reports whether global hotkeys can be registered.
func EnsureAccessibility() error {
	if !CheckAccessibility() {
		fmt.Println("⚠️  Accessibility permission required for hotkeys")
		fmt.Println("   Go to: System Settings → Privacy & Security → Accessibility")
		return ErrAccessibilityDenied
	}
	return nil
}
