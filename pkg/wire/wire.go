// Package wire implements Ames's message serialization (jam/cue) and the
// lazy fragment slicing used by the message pump and sink.
package wire

import (
	cbor "github.com/fxamacker/cbor/v2"
)

// FragmentSize is the byte length of every fragment but the last.
const FragmentSize = 1024

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	encMode = em
	decMode = dm
}

// Jam canonically serializes v, the sole serialization Ames uses on the
// wire for message blobs, PKI payloads, and persisted snapshots.
func Jam(v any) ([]byte, error) { return encMode.Marshal(v) }

// Cue is the inverse of Jam.
func Cue(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// NumFragments returns how many FragmentSize-byte pieces blob divides
// into; an empty blob still occupies exactly one fragment (fragment 0).
func NumFragments(blobLen int) int {
	if blobLen == 0 {
		return 1
	}
	return (blobLen + FragmentSize - 1) / FragmentSize
}

// FragmentBytes slices fragment fragNum out of blob on demand. Callers
// hold only (message-num, num-fragments, fragment-num, whole-blob) until
// this is called at encryption time, avoiding quadratic allocation for
// large messages that are resent many times.
func FragmentBytes(blob []byte, fragNum int) []byte {
	start := fragNum * FragmentSize
	if start >= len(blob) {
		return nil
	}
	end := start + FragmentSize
	if end > len(blob) {
		end = len(blob)
	}
	return blob[start:end]
}

// Reassemble concatenates fragments, already ordered by index, into the
// original message blob.
func Reassemble(fragments [][]byte) []byte {
	total := 0
	for _, f := range fragments {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out
}
