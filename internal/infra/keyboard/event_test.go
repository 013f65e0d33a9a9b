package keyboard

import (
	"encoding/binary"
	"testing"

	"voicetype/internal/domain"
)

const testEventSize = 24

func record(typ, code uint16, value int32) []byte {
	rec := make([]byte, testEventSize)
	binary.NativeEndian.PutUint16(rec[16:18], typ)
	binary.NativeEndian.PutUint16(rec[18:20], code)
	binary.NativeEndian.PutUint32(rec[20:24], uint32(value))
	return rec
}

func TestDecodeEvents(t *testing.T) {
	const f12 = 88

	var buf []byte
	buf = append(buf, record(0x04, 4, 458821)...) // EV_MSC scan code
	buf = append(buf, record(evKey, f12, valuePress)...)
	buf = append(buf, record(0x00, 0, 0)...) // EV_SYN
	buf = append(buf, record(evKey, f12, valueRepeat)...)
	buf = append(buf, record(evKey, 30, valuePress)...) // KEY_A
	buf = append(buf, record(evKey, f12, valueRelease)...)
	buf = append(buf, 0x01, 0x02) // torn trailing record

	got := decodeEvents(buf, testEventSize, f12, "kbd", nil)

	want := []domain.KeyAction{domain.KeyPress, domain.KeyRepeat, domain.KeyRelease}
	if len(got) != len(want) {
		t.Fatalf("events: got %d, want %d (%v)", len(got), len(want), got)
	}
	for i, ev := range got {
		if ev.Action != want[i] {
			t.Errorf("event %d: got %s, want %s", i, ev.Action, want[i])
		}
		if ev.Code != f12 || ev.Device != "kbd" {
			t.Errorf("event %d: unexpected %+v", i, ev)
		}
	}
}

func TestDecodeEvents_AppendsInOrder(t *testing.T) {
	first := decodeEvents(record(evKey, 88, valuePress), testEventSize, 88, "a", nil)
	both := decodeEvents(record(evKey, 88, valueRelease), testEventSize, 88, "b", first)

	if len(both) != 2 || both[0].Device != "a" || both[1].Device != "b" {
		t.Fatalf("unexpected order: %+v", both)
	}
}

func TestHasKey(t *testing.T) {
	bits := make([]byte, 0x2ff/8+1)
	bits[88/8] |= 1 << (88 % 8)

	tests := []struct {
		code uint16
		want bool
	}{
		{88, true},
		{87, false},
		{89, false},
		{0x2ff + 8, false},
	}
	for _, tt := range tests {
		if got := hasKey(bits, tt.code); got != tt.want {
			t.Errorf("hasKey(%d): got %v, want %v", tt.code, got, tt.want)
		}
	}
}
