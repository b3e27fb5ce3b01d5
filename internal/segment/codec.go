package segment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/pksplit/internal/ir"
)

// encMode encodes with Core Deterministic Encoding (RFC 8949 section 4.2):
// sorted map keys, smallest integer encoding, definite lengths.
var encMode cbor.EncMode

// decMode rejects duplicate map keys and caps nesting; unknown fields are
// ignored so older readers can open newer segments.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("segment: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 16,
	}.DecMode()
	if err != nil {
		panic("segment: CBOR decoder initialization failed: " + err.Error())
	}
}

// encodeFragments writes fragments as a CBOR sequence.
func encodeFragments(fragments []ir.Fragment) ([]byte, error) {
	var buf bytes.Buffer
	enc := encMode.NewEncoder(&buf)
	for i, f := range fragments {
		if err := enc.Encode(f); err != nil {
			return nil, fmt.Errorf("encode fragment %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// decodeFragments reads a CBOR sequence back into fragments.
func decodeFragments(raw []byte) ([]ir.Fragment, error) {
	dec := decMode.NewDecoder(bytes.NewReader(raw))
	var out []ir.Fragment
	for {
		var f ir.Fragment
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode fragment %d: %w", len(out), err)
		}
		out = append(out, f)
	}
}

// Diagnose renders a raw (uncompressed) body in CBOR diagnostic notation,
// one line per fragment.
func Diagnose(raw []byte) (string, error) {
	var lines []string
	for len(raw) > 0 {
		diag, rest, err := cbor.DiagnoseFirst(raw)
		if err != nil {
			return "", err
		}
		lines = append(lines, diag)
		raw = rest
	}
	return strings.Join(lines, "\n"), nil
}

// MarshalKey encodes a partition key for storage outside a segment body.
func MarshalKey(key ir.PartitionKey) ([]byte, error) {
	return encMode.Marshal(key)
}

// UnmarshalKey decodes a key written by MarshalKey.
func UnmarshalKey(data []byte) (ir.PartitionKey, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var key ir.PartitionKey
	if err := decMode.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("decode partition key: %w", err)
	}
	return key, nil
}

// MarshalFragment encodes a single fragment.
func MarshalFragment(f ir.Fragment) ([]byte, error) {
	return encMode.Marshal(f)
}

// UnmarshalFragment decodes a fragment written by MarshalFragment.
func UnmarshalFragment(data []byte) (ir.Fragment, error) {
	var f ir.Fragment
	if err := decMode.Unmarshal(data, &f); err != nil {
		return ir.Fragment{}, fmt.Errorf("decode fragment: %w", err)
	}
	return f, nil
}
