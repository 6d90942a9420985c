package wire

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 123000)
	e := Envelope{
		Mode:            2,
		Timeout:         5 * time.Minute,
		CreatedUTC:      now,
		LastAccessedUTC: now.Add(time.Second),
		Version:         7,
		HandleEpoch:     3,
		RegionEpoch:     9,
		Payload:         []byte("hello world"),
	}

	got, err := Decode(Encode(e))
	if err != nil {
		t.Fatal(err)
	}

	if got.Mode != e.Mode {
		t.Fatalf("Mode=%d want %d", got.Mode, e.Mode)
	}
	if got.Timeout != e.Timeout {
		t.Fatalf("Timeout=%v want %v", got.Timeout, e.Timeout)
	}
	if !got.CreatedUTC.Equal(e.CreatedUTC) {
		t.Fatalf("CreatedUTC=%v want %v", got.CreatedUTC, e.CreatedUTC)
	}
	if !got.LastAccessedUTC.Equal(e.LastAccessedUTC) {
		t.Fatalf("LastAccessedUTC=%v want %v", got.LastAccessedUTC, e.LastAccessedUTC)
	}
	if got.Version != e.Version || got.HandleEpoch != e.HandleEpoch || got.RegionEpoch != e.RegionEpoch {
		t.Fatalf("version/epoch mismatch: got %+v want %+v", got, e)
	}
	if !bytes.Equal(got.Payload, e.Payload) {
		t.Fatalf("Payload=%q want %q", got.Payload, e.Payload)
	}
}

func TestEncodeDecodeEmptyPayload(t *testing.T) {
	e := Envelope{Mode: 0, CreatedUTC: time.Now(), LastAccessedUTC: time.Now()}
	got, err := Decode(Encode(e))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %q", got.Payload)
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	full := Encode(Envelope{Mode: 1, Payload: []byte("x")})
	if _, err := Decode(full[:len(full)-3]); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on truncated input, got %v", err)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	full := Encode(Envelope{Mode: 1, Payload: []byte("x")})
	corrupt := append([]byte(nil), full...)
	corrupt[0] = 'X'
	if _, err := Decode(corrupt); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on bad magic, got %v", err)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	full := Encode(Envelope{Mode: 1, Payload: []byte("x")})
	corrupt := append([]byte(nil), full...)
	corrupt[4] = 99
	if _, err := Decode(corrupt); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on unknown version, got %v", err)
	}
}

func TestDecodeRejectsOversizedLengthPrefix(t *testing.T) {
	full := Encode(Envelope{Mode: 1, Payload: []byte("x")})
	corrupt := append([]byte(nil), full...)
	// vlen is the last 4 bytes before payload; inflate it past the buffer.
	vlenOff := len(corrupt) - 1 - 4
	corrupt[vlenOff] = 0x7f
	if _, err := Decode(corrupt); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on an oversized length prefix, got %v", err)
	}
}
