package keyboard

import (
	"fmt"
	"strings"
)

// evdev modifier key codes
const (
	LeftControl  uint16 = 29
	RightControl uint16 = 97
	LeftShift    uint16 = 42
	RightShift   uint16 = 54
	LeftAlt      uint16 = 56
	RightAlt     uint16 = 100
	LeftSuper    uint16 = 125
	RightSuper   uint16 = 126
)

// KeyCodes maps key names to their evdev codes
var KeyCodes = map[string]uint16{
	// a-z
	"a": 30, "b": 48, "c": 46, "d": 32, "e": 18, "f": 33, "g": 34, "h": 35,
	"i": 23, "j": 36, "k": 37, "l": 38, "m": 50, "n": 49, "o": 24, "p": 25,
	"q": 16, "r": 19, "s": 31, "t": 20, "u": 22, "v": 47, "w": 17, "x": 45,
	"y": 21, "z": 44,
	// 0-9
	"0": 11, "1": 2, "2": 3, "3": 4, "4": 5, "5": 6, "6": 7, "7": 8, "8": 9, "9": 10,
	// Special characters
	"`": 41, "[": 26, "]": 27, "\\": 43, ";": 39, "'": 40, ",": 51, ".": 52, "/": 53, "-": 12, "=": 13,
	"space": 57, "escape": 1, "enter": 28, "tab": 15,
	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63, "f6": 64,
	"f7": 65, "f8": 66, "f9": 67, "f10": 68, "f11": 87, "f12": 88,
}

// ModifierState tracks the state of modifier keys (Ctrl, Shift, Alt, Super)
type ModifierState struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
}

// KeyBinding is a key plus the exact set of modifiers that must be held
type KeyBinding struct {
	ModifierState
	Key  string
	Code uint16
}

func (b KeyBinding) String() string {
	var parts []string
	if b.Ctrl {
		parts = append(parts, "ctrl")
	}
	if b.Shift {
		parts = append(parts, "shift")
	}
	if b.Alt {
		parts = append(parts, "alt")
	}
	if b.Super {
		parts = append(parts, "super")
	}
	return strings.Join(append(parts, b.Key), "+")
}

// ParseBinding reads combinations like "ctrl+alt+b"
func ParseBinding(s string) (KeyBinding, error) {
	var b KeyBinding
	fields := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if i < len(fields)-1 {
			switch f {
			case "ctrl", "control":
				b.Ctrl = true
			case "shift":
				b.Shift = true
			case "alt":
				b.Alt = true
			case "super", "meta", "win", "cmd":
				b.Super = true
			default:
				return KeyBinding{}, fmt.Errorf("unknown modifier %q in %q", f, s)
			}
			continue
		}
		code, ok := KeyCodes[f]
		if !ok {
			return KeyBinding{}, fmt.Errorf("unknown key %q in %q", f, s)
		}
		b.Key = f
		b.Code = code
	}
	return b, nil
}
