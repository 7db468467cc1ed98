// Package afjustification decodes the raw justification bytes kept by the backend.
//
// Two layouts exist.
// The versioned layout is
//
//	version (uint16, big endian) | size (uint16, big endian) | payload[size]
//
// and is accepted for versions 2 and 3.
// The legacy layout, written before versioning was introduced, is
//
//	n (uint8) | n signatures of 64 bytes each
//
// [Decode] tries the versioned layout first and falls back to the legacy one.
package afjustification

import (
	"encoding/binary"
	"fmt"
	"slices"
)

const (
	// LegacyVersion marks a justification in the unversioned layout.
	LegacyVersion uint16 = 0

	SignatureSize = 64

	versionedPrefixSize = 4
)

// SupportedVersions lists the versioned layouts that decode successfully.
var SupportedVersions = []uint16{2, 3}

// Justification is a decoded justification.
type Justification struct {
	Version uint16

	// Payload is set for versioned justifications.
	Payload []byte

	// Signatures is set for legacy justifications.
	Signatures [][]byte
}

// Encode serializes j in the layout matching its version.
func Encode(j Justification) ([]byte, error) {
	if j.Version == LegacyVersion {
		if len(j.Signatures) > 255 {
			return nil, fmt.Errorf("too many legacy signatures: %d", len(j.Signatures))
		}
		out := make([]byte, 1, 1+SignatureSize*len(j.Signatures))
		out[0] = byte(len(j.Signatures))
		for i, s := range j.Signatures {
			if len(s) != SignatureSize {
				return nil, fmt.Errorf("signature %d has %d bytes, want %d", i, len(s), SignatureSize)
			}
			out = append(out, s...)
		}
		return out, nil
	}

	if !slices.Contains(SupportedVersions, j.Version) {
		return nil, fmt.Errorf("unsupported justification version %d", j.Version)
	}
	if len(j.Payload) > 0xffff {
		return nil, fmt.Errorf("payload too large: %d bytes", len(j.Payload))
	}
	out := make([]byte, 0, versionedPrefixSize+len(j.Payload))
	out = binary.BigEndian.AppendUint16(out, j.Version)
	out = binary.BigEndian.AppendUint16(out, uint16(len(j.Payload)))
	return append(out, j.Payload...), nil
}

// Decode parses raw in either layout.
// If neither layout matches, the returned error is a [DecodeError]
// describing why the versioned layout was rejected
// and why the legacy one was.
func Decode(raw []byte) (Justification, error) {
	j, vErr := decodeVersioned(raw)
	if vErr == nil {
		return j, nil
	}

	j, lErr := decodeLegacy(raw)
	if lErr == nil {
		return j, nil
	}

	return Justification{}, DecodeError{
		Reason: fmt.Sprintf("versioned: %s; legacy: %s", vErr, lErr),
	}
}

// Check reports whether raw decodes, discarding the result.
func Check(raw []byte) error {
	_, err := Decode(raw)
	return err
}

func decodeVersioned(raw []byte) (Justification, error) {
	if len(raw) < versionedPrefixSize {
		return Justification{}, fmt.Errorf("need at least %d bytes, have %d", versionedPrefixSize, len(raw))
	}

	v := binary.BigEndian.Uint16(raw[:2])
	if !slices.Contains(SupportedVersions, v) {
		return Justification{}, fmt.Errorf("unsupported version %d", v)
	}

	size := int(binary.BigEndian.Uint16(raw[2:4]))
	if rest := len(raw) - versionedPrefixSize; rest != size {
		return Justification{}, fmt.Errorf("declared size %d, have %d payload bytes", size, rest)
	}

	return Justification{
		Version: v,
		Payload: slices.Clone(raw[versionedPrefixSize:]),
	}, nil
}

func decodeLegacy(raw []byte) (Justification, error) {
	if len(raw) == 0 {
		return Justification{}, fmt.Errorf("empty input")
	}

	n := int(raw[0])
	if want := 1 + n*SignatureSize; len(raw) != want {
		return Justification{}, fmt.Errorf("%d signatures need %d bytes, have %d", n, want, len(raw))
	}

	sigs := make([][]byte, n)
	for i := range sigs {
		off := 1 + i*SignatureSize
		sigs[i] = slices.Clone(raw[off : off+SignatureSize])
	}
	return Justification{
		Version:    LegacyVersion,
		Signatures: sigs,
	}, nil
}
