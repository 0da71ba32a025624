package gcrypto

import (
	"bytes"
	"fmt"
	"reflect"
)

// Type names are encoded as a fixed-width, zero-padded prefix.
const prefixSize = 8

// Registry maps public key types to names,
// so that keys can travel on the wire next to the bytes they sign.
type Registry struct {
	byType map[reflect.Type]string

	byName map[string]NewPubKeyFunc
}

type NewPubKeyFunc func([]byte) (PubKey, error)

// Register associates name with the concrete type of inst.
// It panics if name does not fit in the prefix or was already registered.
func (r *Registry) Register(name string, inst PubKey, newFn NewPubKeyFunc) {
	if name == "" || len(name) > prefixSize {
		panic(fmt.Errorf("BUG: key type name %q must be 1-%d bytes", name, prefixSize))
	}
	if _, ok := r.byName[name]; ok {
		panic(fmt.Errorf("BUG: key type name %q registered twice", name))
	}

	if r.byName == nil {
		r.byName = map[string]NewPubKeyFunc{}
	}
	r.byName[name] = newFn

	if r.byType == nil {
		r.byType = map[reflect.Type]string{}
	}
	r.byType[reflect.TypeOf(inst)] = name
}

// Marshal returns the type-prefixed encoding of pubKey.
func (r *Registry) Marshal(pubKey PubKey) []byte {
	typ := reflect.TypeOf(pubKey)
	name, ok := r.byType[typ]
	if !ok {
		panic(fmt.Errorf(
			"BUG: Marshal called with unregistered public key (reflect type: %s, type name: %s)",
			typ, pubKey.TypeName(),
		))
	}

	var header [prefixSize]byte
	copy(header[:], name)

	return append(header[:], pubKey.PubKeyBytes()...)
}

// Unmarshal decodes a key previously produced by [*Registry.Marshal].
//
// The returned key may retain a reference to b,
// so b must not be modified afterwards.
func (r *Registry) Unmarshal(b []byte) (PubKey, error) {
	if len(b) < prefixSize {
		return nil, ErrShortKey
	}

	name := bytes.TrimRight(b[:prefixSize], "\x00")

	fn := r.byName[string(name)]
	if fn == nil {
		return nil, fmt.Errorf("%w: no registered public key type for prefix %q", ErrUnknownKey, name)
	}

	return fn(b[prefixSize:])
}

// Decode builds a key of the named type from raw key bytes.
func (r *Registry) Decode(typeName string, b []byte) (PubKey, error) {
	fn := r.byName[typeName]
	if fn == nil {
		return nil, fmt.Errorf("%w: no registered public key type for name %q", ErrUnknownKey, typeName)
	}

	return fn(b)
}
