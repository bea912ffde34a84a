package snapshot

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jguida941/adaptive-hashmap-core/errs"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte(`{"backend":"chaining","items":[{"key":"a","value":"1"}]}`)

	for _, gzip := range []bool{false, true} {
		encoded, err := Encode(payload, gzip)
		if err != nil {
			t.Fatalf("Encode(gzip=%v): %v", gzip, err)
		}
		got, err := Decode(encoded, 0)
		if err != nil {
			t.Fatalf("Decode(gzip=%v): %v", gzip, err)
		}
		if string(got) != string(payload) {
			t.Fatalf("Decode(gzip=%v) = %q, want %q", gzip, got, payload)
		}
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	encoded, _ := Encode([]byte("x"), false)
	encoded[0] = 'Z'
	if _, err := Decode(encoded, 0); !errors.Is(err, errs.ErrIO) {
		t.Fatalf("expected IO-tier error for bad magic, got %v", err)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	encoded, _ := Encode([]byte("x"), false)
	encoded[4] = 0xFF
	if _, err := Decode(encoded, 0); err == nil {
		t.Fatalf("expected error for unknown version")
	}
}

func TestDecodeRejectsUnknownFlags(t *testing.T) {
	encoded, _ := Encode([]byte("x"), false)
	encoded[6] |= 0x80
	if _, err := Decode(encoded, 0); err == nil {
		t.Fatalf("expected error for unknown flag bits")
	}
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	encoded, _ := Encode([]byte("hello world"), false)
	if _, err := Decode(encoded, 4); err == nil {
		t.Fatalf("expected error for payload exceeding max size")
	}
}

// TestDecodeRejectsTamperedPayloadWithChecksumError verifies that a
// flipped payload byte fails with a checksum
// mismatch, never with a deserialization error (the corrupt bytes are never
// handed to a JSON parser).
func TestDecodeRejectsTamperedPayloadWithChecksumError(t *testing.T) {
	dump := Dump{Backend: "robinhood", Items: []Entry{{Key: "a", Value: "1"}}}
	payload, err := EncodeDump(dump)
	if err != nil {
		t.Fatalf("EncodeDump: %v", err)
	}
	encoded, err := Encode(payload, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Flip one byte inside the payload section (after the fixed header and
	// 4-byte CRC32 checksum).
	payloadStart := headerFixedLen + 4
	encoded[payloadStart] ^= 0xFF

	_, err = Decode(encoded, 0)
	if err == nil {
		t.Fatalf("expected checksum mismatch error, got nil")
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errs.Error, got %T", err)
	}
	if e.Tier != errs.TierIO {
		t.Fatalf("expected IO tier, got %v", e.Tier)
	}
	if !errors.Is(err, errChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
}

func TestWriteFileReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.bin")

	dump := Dump{Backend: "chaining", Items: []Entry{{Key: "k0", Value: "v0"}, {Key: "k1", Value: "v1"}}}
	payload, err := EncodeDump(dump)
	if err != nil {
		t.Fatalf("EncodeDump: %v", err)
	}

	if err := WriteFile(path, payload, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	gotDump, err := DecodeDump(got)
	if err != nil {
		t.Fatalf("DecodeDump: %v", err)
	}
	if gotDump.Backend != dump.Backend || len(gotDump.Items) != len(dump.Items) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", gotDump, dump)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.bin"), 0)
	if !errors.Is(err, errs.ErrIO) {
		t.Fatalf("expected IO-tier error for missing file, got %v", err)
	}
}
