package wire

import (
	"bytes"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	m := NewMessage()
	// Tags compare as little-endian uint32 values, so SPAM sorts before EGGS.
	if err := m.Set(makeTag("SPAM"), []byte("FOO\n")); err != nil {
		t.Fatalf("Set(SPAM) = %v", err)
	}
	if err := m.Set(makeTag("EGGS"), []byte("BAR\n")); err != nil {
		t.Fatalf("Set(EGGS) = %v", err)
	}
	if err := m.Set(makeTag("TEST"), nil); err != nil {
		t.Fatalf("Set(TEST) = %v", err)
	}

	buf := EncodeMessage(m)
	got, err := DecodeMessage(buf)
	if err != nil {
		t.Fatalf("DecodeMessage() = %v", err)
	}

	for _, tc := range []struct {
		tag  string
		want string
	}{
		{"EGGS", "BAR\n"},
		{"SPAM", "FOO\n"},
		{"TEST", ""},
	} {
		v, ok := got.GetField(makeTag(tc.tag))
		if !ok {
			t.Errorf("GetField(%s) missing", tc.tag)
			continue
		}
		if !bytes.Equal(v, []byte(tc.want)) {
			t.Errorf("GetField(%s) = %q, want %q", tc.tag, v, tc.want)
		}
	}
	if _, ok := got.GetField(makeTag("NOPE")); ok {
		t.Errorf("GetField(NOPE) found a field that was never set")
	}
}

func TestMessageSetRequiresAscendingTags(t *testing.T) {
	m := NewMessage()
	if err := m.Set(makeTag("EGGS"), nil); err != nil {
		t.Fatalf("Set(EGGS) = %v", err)
	}
	if err := m.Set(makeTag("SPAM"), nil); err == nil {
		t.Errorf("Set(SPAM) after EGGS = nil, want ErrUnsortedTags")
	}
}

func TestSetMessageRejectsExcessiveTagCount(t *testing.T) {
	buf := make([]byte, 4)
	// A count well above MaxTags. SetMessage checks MaxTags before the
	// message length, so this is rejected as too many fields.
	for i, b := range []byte{0xff, 0xff, 0x00, 0x00} {
		buf[i] = b
	}
	if err := Decode(buf, func(st *DecodeState) {}); err == nil {
		t.Errorf("Decode with huge tag count = nil, want error")
	}
}
