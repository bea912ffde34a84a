package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jguida941/adaptive-hashmap-core/errs"
)

// WriteFile encodes payload and writes it to path durably: a temp file in
// the same directory is written, fsynced, and renamed over path, so a
// crash mid-write never leaves a half-written file at the real path.
func WriteFile(path string, payload []byte, gzipCompress bool) error {
	encoded, err := Encode(payload, gzipCompress)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errs.IO(path, fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.IO(path, fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.IO(path, fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.IO(path, fmt.Errorf("close temp file: %w", err))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.IO(path, fmt.Errorf("rename: %w", err))
	}
	return nil
}

// ReadFile reads and decodes the snapshot at path. maxPayloadSize <= 0
// selects DefaultMaxPayloadSize.
func ReadFile(path string, maxPayloadSize int64) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO(path, err)
	}
	payload, err := Decode(data, maxPayloadSize)
	if err != nil {
		var e *errs.Error
		if asErrsError(err, &e) {
			return nil, &errs.Error{Tier: e.Tier, Message: fmt.Sprintf("path %q: %s", path, e.Message), Cause: e.Cause}
		}
		return nil, errs.IO(path, err)
	}
	return payload, nil
}

func asErrsError(err error, target **errs.Error) bool {
	e, ok := err.(*errs.Error)
	if ok {
		*target = e
	}
	return ok
}
