// Package snapshot implements the best-effort checkpoint container
// format: magic bytes, version, flags, a checksum, and an
// opaque payload. It is a framing format only - what goes inside the
// payload (a serialized backend) is the caller's concern; this package's
// job is to reject a corrupt or foreign file with a precise error before
// a single payload byte is ever handed back for deserialization.
package snapshot

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/jguida941/adaptive-hashmap-core/errs"
)

const (
	// Magic identifies an adaptive-hashmap-core snapshot file.
	Magic = "AHM1"
	// CurrentVersion is the only version this package's reader accepts.
	CurrentVersion uint16 = 1

	// FlagGzip marks the payload as gzip-compressed.
	FlagGzip uint8 = 1 << 0
	// knownFlags is the set of flag bits this version understands; any
	// other bit set in a loaded file is rejected rather than silently
	// ignored.
	knownFlags = FlagGzip

	// headerFixedLen is the size, in bytes, of the fixed-width portion of
	// the header that precedes the checksum bytes: magic(4) + version(2) +
	// flags(1) + reserved(1) + checksumLen(4) + payloadLen(8).
	headerFixedLen = 4 + 2 + 1 + 1 + 4 + 8

	// DefaultMaxPayloadSize bounds how large a payload this package will
	// ever allocate for, regardless of what a (possibly corrupt or
	// malicious) file's header claims.
	DefaultMaxPayloadSize = 256 << 20 // 256 MiB
)

// Encode frames payload into the on-disk container format. gzipCompress
// selects whether payload is compressed (FlagGzip) before checksumming;
// Decode transparently reverses whichever was chosen.
func Encode(payload []byte, gzipCompress bool) ([]byte, error) {
	body := payload
	flags := uint8(0)
	if gzipCompress {
		compressed, err := gzipCompressBytes(payload)
		if err != nil {
			return nil, errs.IO("<in-memory payload>", err)
		}
		body = compressed
		flags |= FlagGzip
	}

	checksum := checksumBytes(body)

	header := make([]byte, headerFixedLen)
	copy(header[0:4], Magic)
	binary.LittleEndian.PutUint16(header[4:6], CurrentVersion)
	header[6] = flags
	header[7] = 0 // reserved
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(checksum)))
	binary.LittleEndian.PutUint64(header[12:20], uint64(len(body)))

	out := make([]byte, 0, len(header)+len(checksum)+len(body))
	out = append(out, header...)
	out = append(out, checksum...)
	out = append(out, body...)
	return out, nil
}

// Decode validates and unframes data written by Encode, returning the
// original (decompressed) payload. Every check runs,
// in order, before any payload byte is trusted: magic, version, flag bits,
// payload-size bound, then checksum - only after the checksum matches is
// the payload (optionally) decompressed and handed back.
func Decode(data []byte, maxPayloadSize int64) ([]byte, error) {
	if maxPayloadSize <= 0 {
		maxPayloadSize = DefaultMaxPayloadSize
	}

	if len(data) < headerFixedLen {
		return nil, errs.IO("<snapshot>", errShortHeader)
	}
	if string(data[0:4]) != Magic {
		return nil, errs.IO("<snapshot>", errBadMagic)
	}

	version := binary.LittleEndian.Uint16(data[4:6])
	if version != CurrentVersion {
		return nil, errs.IO("<snapshot>", errUnknownVersion(version))
	}

	flags := data[6]
	if flags&^knownFlags != 0 {
		return nil, errs.IO("<snapshot>", errUnknownFlags(flags))
	}

	checksumLen := binary.LittleEndian.Uint32(data[8:12])
	payloadLen := binary.LittleEndian.Uint64(data[12:20])

	if int64(payloadLen) > maxPayloadSize {
		return nil, errs.IO("<snapshot>", errPayloadTooLarge(payloadLen, maxPayloadSize))
	}

	rest := data[headerFixedLen:]
	if uint64(len(rest)) < uint64(checksumLen)+payloadLen {
		return nil, errs.IO("<snapshot>", errShortBody)
	}

	wantChecksum := rest[:checksumLen]
	body := rest[checksumLen : uint64(checksumLen)+payloadLen]

	gotChecksum := checksumBytes(body)
	if !bytesEqual(wantChecksum, gotChecksum) {
		return nil, errs.IO("<snapshot>", errChecksumMismatch)
	}

	if flags&FlagGzip != 0 {
		decompressed, err := gzipDecompressBytes(body)
		if err != nil {
			return nil, errs.IO("<snapshot>", err)
		}
		return decompressed, nil
	}
	return append([]byte(nil), body...), nil
}

func checksumBytes(b []byte) []byte {
	sum := crc32.ChecksumIEEE(b)
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, sum)
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
