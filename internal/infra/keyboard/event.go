// Package keyboard watches input devices for the trigger key.
package keyboard

import (
	"encoding/binary"
	"errors"

	"voicetype/internal/domain"
)

var ErrClosed = errors.New("key monitor closed")

const (
	evKey = 0x01

	valueRelease = 0
	valuePress   = 1
	valueRepeat  = 2
)

// decodeEvents extracts trigger key events from a read of raw input_event
// records. size is sizeof(struct input_event); type, code and value are
// the last eight bytes of each record.
func decodeEvents(buf []byte, size int, code uint16, device string, out []domain.KeyEvent) []domain.KeyEvent {
	for off := 0; off+size <= len(buf); off += size {
		rec := buf[off : off+size]
		tail := rec[size-8:]

		if binary.NativeEndian.Uint16(tail[0:2]) != evKey {
			continue
		}
		if binary.NativeEndian.Uint16(tail[2:4]) != code {
			continue
		}

		var action domain.KeyAction
		switch int32(binary.NativeEndian.Uint32(tail[4:8])) {
		case valuePress:
			action = domain.KeyPress
		case valueRelease:
			action = domain.KeyRelease
		case valueRepeat:
			action = domain.KeyRepeat
		default:
			continue
		}
		out = append(out, domain.KeyEvent{Code: code, Action: action, Device: device})
	}
	return out
}

// hasKey tests bit code in an EVIOCGBIT(EV_KEY) bitmap.
func hasKey(bits []byte, code uint16) bool {
	i := int(code / 8)
	if i >= len(bits) {
		return false
	}
	return bits[i]&(1<<(code%8)) != 0
}
