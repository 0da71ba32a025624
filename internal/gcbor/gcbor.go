// Package gcbor configures the CBOR modes used for every signed or hashed encoding.
//
// Encoding is core deterministic (RFC 8949 section 4.2.1) so that
// independent nodes produce identical bytes for identical values.
// Nil slices and maps encode as empty containers,
// which keeps re-encoding a decoded value byte-identical to the original.
package gcbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	eo := cbor.CoreDetEncOptions()
	eo.NilContainers = cbor.NilContainerAsEmpty

	var err error
	encMode, err = eo.EncMode()
	if err != nil {
		panic(fmt.Errorf("BUG: invalid CBOR encoding options: %w", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("BUG: invalid CBOR decoding options: %w", err))
	}
}

// Marshal deterministically encodes v.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes b into v, rejecting duplicate map keys and unknown fields.
func Unmarshal(b []byte, v any) error {
	return decMode.Unmarshal(b, v)
}
