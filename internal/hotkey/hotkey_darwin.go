//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework Carbon
#include <Carbon/Carbon.h>

extern void goHotkeyCallback(UInt32 id, int pressed);

static OSStatus hotkeyHandler(EventHandlerCallRef next, EventRef event, void* userData) {
    EventHotKeyID hkID;
    GetEventParameter(event, kEventParamDirectObject, typeEventHotKeyID, NULL, sizeof(hkID), NULL, &hkID);
    goHotkeyCallback(hkID.id, GetEventKind(event) == kEventHotKeyPressed ? 1 : 0);
    return noErr;
}

static int installHandler(void) {
    EventTypeSpec types[2] = {
        {kEventClassKeyboard, kEventHotKeyPressed},
        {kEventClassKeyboard, kEventHotKeyReleased},
    };
    return InstallApplicationEventHandler(NewEventHandlerUPP(hotkeyHandler), 2, types, NULL, NULL) == noErr;
}

static EventHotKeyRef registerHotkey(UInt32 keyCode, UInt32 modifiers, UInt32 id) {
    EventHotKeyID hkID;
    hkID.signature = 'clip';
    hkID.id = id;

    EventHotKeyRef ref = NULL;
    if (RegisterEventHotKey(keyCode, modifiers, hkID, GetApplicationEventTarget(), 0, &ref) != noErr) {
        return NULL;
    }
    return ref;
}

static void unregisterHotkey(EventHotKeyRef ref) {
    UnregisterEventHotKey(ref);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
)

// Carbon delivers every hotkey through one application handler; callbacks
// are looked up by the ID given at registration.
var (
	installOnce sync.Once
	installErr  error

	callbacksMu sync.Mutex
	callbacks   = make(map[uint32]func(bool))
)

type registration struct {
	id  uint32
	ref C.EventHotKeyRef
}

type darwinManager struct {
	mu     sync.Mutex
	nextID uint32
	keys   map[string]registration
}

// New creates a macOS hotkey manager using Carbon
func New() (Manager, error) {
	installOnce.Do(func() {
		if C.installHandler() == 0 {
			installErr = errors.New("failed to install hotkey event handler")
		}
	})
	if installErr != nil {
		return nil, installErr
	}
	return &darwinManager{keys: make(map[string]registration)}, nil
}

//export goHotkeyCallback
func goHotkeyCallback(id C.UInt32, pressed C.int) {
	callbacksMu.Lock()
	cb := callbacks[uint32(id)]
	callbacksMu.Unlock()
	if cb != nil {
		cb(pressed == 1)
	}
}

func (m *darwinManager) Register(accel string, callback func(pressed bool)) error {
	a, err := ParseAccel(accel)
	if err != nil {
		return err
	}
	keyCode, modifiers := a.carbon()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[accel]; ok {
		return fmt.Errorf("hotkey %q already registered", accel)
	}
	m.nextID++
	id := m.nextID

	// Install the callback first; a press can arrive as soon as Carbon accepts the key.
	callbacksMu.Lock()
	callbacks[id] = callback
	callbacksMu.Unlock()

	ref := C.registerHotkey(C.UInt32(keyCode), C.UInt32(modifiers), C.UInt32(id))
	if ref == nil {
		callbacksMu.Lock()
		delete(callbacks, id)
		callbacksMu.Unlock()
		return fmt.Errorf("failed to register hotkey %q", accel)
	}

	m.keys[accel] = registration{id: id, ref: ref}
	return nil
}

func (m *darwinManager) Unregister(accel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregisterLocked(accel)
	return nil
}

func (m *darwinManager) unregisterLocked(accel string) {
	r, ok := m.keys[accel]
	if !ok {
		return
	}
	delete(m.keys, accel)
	C.unregisterHotkey(r.ref)

	callbacksMu.Lock()
	delete(callbacks, r.id)
	callbacksMu.Unlock()
}

func (m *darwinManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for accel := range m.keys {
		m.unregisterLocked(accel)
	}
	return nil
}
