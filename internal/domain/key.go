package domain

import (
	"sort"
	"strings"
)

// TriggerKey identifies the key whose press/release brackets a recording.
// Code is the Linux input event code.
type TriggerKey struct {
	Code uint16
	Name string
}

type KeyAction int

const (
	KeyRelease KeyAction = iota
	KeyPress
	KeyRepeat
)

func (a KeyAction) String() string {
	switch a {
	case KeyPress:
		return "press"
	case KeyRelease:
		return "release"
	case KeyRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

type KeyEvent struct {
	Code   uint16
	Action KeyAction
	Device string
}

const DefaultTriggerKeyName = "F12"

var keyCodes = map[string]uint16{
	"F1": 59, "F2": 60, "F3": 61, "F4": 62, "F5": 63, "F6": 64,
	"F7": 65, "F8": 66, "F9": 67, "F10": 68, "F11": 87, "F12": 88,
	"F13": 183, "F14": 184, "F15": 185, "F16": 186, "F17": 187,
	"F18": 188, "F19": 189, "F20": 190, "F21": 191, "F22": 192,
	"F23": 193, "F24": 194,
	"PrintScreen": 99, "Pause": 119, "ScrollLock": 70,
}

// LookupTriggerKey resolves a key name case-insensitively ("f12", "printscreen").
func LookupTriggerKey(name string) (TriggerKey, bool) {
	name = strings.TrimSpace(name)
	for known, code := range keyCodes {
		if strings.EqualFold(known, name) {
			return TriggerKey{Code: code, Name: known}, true
		}
	}
	return TriggerKey{}, false
}

func DefaultTriggerKey() TriggerKey {
	k, _ := LookupTriggerKey(DefaultTriggerKeyName)
	return k
}

// TriggerKeyNames returns every supported key name, sorted.
func TriggerKeyNames() []string {
	names := make([]string, 0, len(keyCodes))
	for name := range keyCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
