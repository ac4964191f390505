// FILE: crashwatch/src/internal/format/cbor.go
package format

import (
	"encoding/hex"
	"fmt"

	"crashwatch/src/internal/correlate"

	"github.com/fxamacker/cbor/v2"
	"github.com/lixenwraith/log"
	"golang.org/x/crypto/blake2b"
)

// CBOREncoder produces a compact binary report using core deterministic encoding,
// so equal reports always encode to equal bytes.
type CBOREncoder struct {
	mode   cbor.EncMode
	logger *log.Logger
}

func NewCBOREncoder(logger *log.Logger) (*CBOREncoder, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &CBOREncoder{mode: mode, logger: logger}, nil
}

func (e *CBOREncoder) Encode(r *correlate.Report) ([]byte, error) {
	data, err := e.mode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CBOR: %w", err)
	}
	return data, nil
}

func (e *CBOREncoder) Name() string {
	return "cbor"
}

// Fingerprint returns a BLAKE2b-256 digest of the report's deterministic CBOR
// encoding. Run identity (run ID, start time, wall-clock duration, version)
// and the fingerprint field itself are left out; the device address is kept.
// Reports of the same device with identical run-relative events share a
// fingerprint.
func (e *CBOREncoder) Fingerprint(r *correlate.Report) (string, error) {
	clone := *r
	clone.Meta.RunID = ""
	clone.Meta.Started = ""
	clone.Meta.Duration = 0
	clone.Meta.Version = ""
	clone.Meta.Fingerprint = ""

	data, err := e.Encode(&clone)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint is a convenience wrapper over a default CBOREncoder
func Fingerprint(r *correlate.Report) (string, error) {
	e, err := NewCBOREncoder(nil)
	if err != nil {
		return "", err
	}
	return e.Fingerprint(r)
}
