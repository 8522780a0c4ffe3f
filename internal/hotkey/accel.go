package hotkey

import (
	"fmt"
	"strings"
)

// Modifier is a bitmask of held modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

// Accel is a parsed accelerator such as "Alt+Space".
type Accel struct {
	Mods Modifier
	Key  string // "space", "a".."z", "0".."9" or "f1".."f12"
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
}

// ParseAccel parses a "+"-separated accelerator. Names are case-insensitive
// and exactly one non-modifier key is required.
func ParseAccel(s string) (Accel, error) {
	var a Accel
	parts := strings.Split(s, "+")
	for i, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			return Accel{}, fmt.Errorf("accelerator %q: empty key name", s)
		}
		if mod, ok := modifierNames[name]; ok && i < len(parts)-1 {
			a.Mods |= mod
			continue
		}
		if i != len(parts)-1 {
			return Accel{}, fmt.Errorf("accelerator %q: %q is not a modifier", s, p)
		}
		if !validKey(name) {
			return Accel{}, fmt.Errorf("accelerator %q: unknown key %q", s, p)
		}
		a.Key = name
	}
	return a, nil
}

func validKey(name string) bool {
	if name == "space" {
		return true
	}
	if _, ok := carbonKeys[name]; ok {
		return true
	}
	return false
}

// X11 modifier masks from X11/X.h.
const (
	x11ShiftMask   = 1 << 0
	x11ControlMask = 1 << 2
	x11Mod1Mask    = 1 << 3
	x11Mod4Mask    = 1 << 6
)

// x11 returns the keysym name and modifier mask for XGrabKey.
func (a Accel) x11() (string, int) {
	var mask int
	if a.Mods&ModShift != 0 {
		mask |= x11ShiftMask
	}
	if a.Mods&ModCtrl != 0 {
		mask |= x11ControlMask
	}
	if a.Mods&ModAlt != 0 {
		mask |= x11Mod1Mask
	}
	if a.Mods&ModSuper != 0 {
		mask |= x11Mod4Mask
	}

	keysym := a.Key
	if strings.HasPrefix(keysym, "f") && len(keysym) > 1 {
		keysym = "F" + keysym[1:]
	}
	return keysym, mask
}

// Carbon modifier flags from Events.h.
const (
	carbonCmdKey     = 0x0100
	carbonShiftKey   = 0x0200
	carbonOptionKey  = 0x0800
	carbonControlKey = 0x1000
)

// Carbon virtual key codes (kVK_*) for the ANSI layout.
var carbonKeys = map[string]uint32{
	"space": 49,
	"a": 0, "s": 1, "d": 2, "f": 3, "h": 4, "g": 5, "z": 6, "x": 7,
	"c": 8, "v": 9, "b": 11, "q": 12, "w": 13, "e": 14, "r": 15,
	"y": 16, "t": 17, "o": 31, "u": 32, "i": 34, "p": 35, "l": 37,
	"j": 38, "k": 40, "n": 45, "m": 46,
	"1": 18, "2": 19, "3": 20, "4": 21, "6": 22, "5": 23, "9": 25,
	"7": 26, "8": 28, "0": 29,
	"f1": 122, "f2": 120, "f3": 99, "f4": 118, "f5": 96, "f6": 97,
	"f7": 98, "f8": 100, "f9": 101, "f10": 109, "f11": 103, "f12": 111,
}

// carbon returns the key code and modifier flags for RegisterEventHotKey.
func (a Accel) carbon() (uint32, uint32) {
	var mods uint32
	if a.Mods&ModSuper != 0 {
		mods |= carbonCmdKey
	}
	if a.Mods&ModShift != 0 {
		mods |= carbonShiftKey
	}
	if a.Mods&ModAlt != 0 {
		mods |= carbonOptionKey
	}
	if a.Mods&ModCtrl != 0 {
		mods |= carbonControlKey
	}
	return carbonKeys[a.Key], mods
}
