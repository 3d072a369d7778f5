package cache

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	keyMultiplier  = 37
	keyInitialHash = 17
	// nullComponentHash stands in for a nil component so that the position of
	// a nil still changes the hash.
	nullComponentHash = 1
	// maxComponentDepth bounds how deep encodeComponent looks for fields
	// msgpack would drop. Anything deeper is rendered as Go syntax.
	maxComponentDepth = 32
)

// keyIdentity is the map identity of a CacheKey. Being its own type, it
// never equals a plain string key.
type keyIdentity struct {
	encoded string
}

// CacheKey is a fingerprint built from an ordered sequence of components
// (statement id, parameters, bounds, ...). It is mutable until first used as
// a lookup key, after which it is frozen.
//
// Two keys built from the same ordered components are Equal and share Hash.
// A CacheKey is not safe for concurrent mutation.
type CacheKey struct {
	hash       uint64
	checksum   uint64
	count      int
	components []any
	// identity is the concatenated canonical encoding of every component,
	// length-prefixed so that component boundaries cannot be confused.
	identity strings.Builder
	frozen   atomic.Bool
	null     bool
}

var _ Identifier = (*CacheKey)(nil)

// NewCacheKey returns a key built from components.
func NewCacheKey(components ...any) (*CacheKey, error) {
	k := &CacheKey{hash: keyInitialHash}
	if err := k.UpdateAll(components...); err != nil {
		return nil, err
	}
	return k, nil
}

// NewNullCacheKey returns a sentinel key for situations where a complete
// fingerprint cannot be produced. It rejects every update and is equal only
// to itself, so it never matches a real entry.
func NewNullCacheKey() *CacheKey {
	k := &CacheKey{hash: keyInitialHash, null: true}
	k.frozen.Store(true)
	return k
}

// Update appends one component.
func (k *CacheKey) Update(component any) error {
	if k.null {
		return errors.Wrap(ErrIllegalMutation, "not allowed to update a null cache key")
	}
	if k.frozen.Load() {
		return errors.Wrapf(ErrIllegalMutation, "cache key %s is frozen", k)
	}
	encoded := encodeComponent(component)
	var componentHash uint64 = nullComponentHash
	if component != nil {
		componentHash = xxhash.Sum64(encoded)
	}
	k.count++
	k.checksum += componentHash
	k.hash = k.hash*keyMultiplier + componentHash
	k.components = append(k.components, component)

	var n [binary.MaxVarintLen64]byte
	k.identity.Write(n[:binary.PutUvarint(n[:], uint64(len(encoded)))])
	k.identity.Write(encoded)
	return nil
}

// UpdateAll appends each component in order.
func (k *CacheKey) UpdateAll(components ...any) error {
	for _, c := range components {
		if err := k.Update(c); err != nil {
			return err
		}
	}
	return nil
}

// Freeze prevents further updates.
func (k *CacheKey) Freeze() *CacheKey {
	k.frozen.Store(true)
	return k
}

// Frozen reports whether the key rejects updates.
func (k *CacheKey) Frozen() bool {
	return k.frozen.Load()
}

// IsNull reports whether k is a null sentinel.
func (k *CacheKey) IsNull() bool {
	return k.null
}

// Identity freezes the key and returns its map identity. A null key's
// identity is the pointer itself.
func (k *CacheKey) Identity() any {
	if k.null {
		return k
	}
	k.frozen.Store(true)
	return keyIdentity{encoded: k.identity.String()}
}

// Hash returns the incrementally computed hash.
func (k *CacheKey) Hash() uint64 {
	return k.hash
}

// Count returns the number of components.
func (k *CacheKey) Count() int {
	return k.count
}

// Components returns a copy of the components in update order.
func (k *CacheKey) Components() []any {
	out := make([]any, len(k.components))
	copy(out, k.components)
	return out
}

// Equal compares hash, checksum, count, the canonical encoding and then every
// component pairwise. A null key is equal only to itself.
func (k *CacheKey) Equal(other *CacheKey) bool {
	if k == other {
		return true
	}
	if k == nil || other == nil || k.null || other.null {
		return false
	}
	if k.hash != other.hash || k.checksum != other.checksum || k.count != other.count {
		return false
	}
	if k.identity.String() != other.identity.String() {
		return false
	}
	for i, c := range k.components {
		if !componentEqual(c, other.components[i]) {
			return false
		}
	}
	return true
}

func componentEqual(a, b any) bool {
	if ka, ok := a.(*CacheKey); ok {
		kb, ok := b.(*CacheKey)
		return ok && ka.Equal(kb)
	}
	if a == nil || b == nil {
		return a == b
	}
	if reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() && a == b {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Clone returns an unfrozen copy that can be extended independently.
func (k *CacheKey) Clone() *CacheKey {
	if k.null {
		return NewNullCacheKey()
	}
	c := &CacheKey{
		hash:       k.hash,
		checksum:   k.checksum,
		count:      k.count,
		components: k.Components(),
	}
	c.identity.WriteString(k.identity.String())
	return c
}

func (k *CacheKey) String() string {
	if k.null {
		return "null"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d", k.hash, k.checksum)
	for _, c := range k.components {
		fmt.Fprintf(&b, ":%v", c)
	}
	return b.String()
}

var (
	customEncoderType   = reflect.TypeFor[msgpack.CustomEncoder]()
	marshalerType       = reflect.TypeFor[msgpack.Marshaler]()
	binaryMarshalerType = reflect.TypeFor[encoding.BinaryMarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
)

// encodeComponent renders a component canonically: its Go type, a marker for
// the encoding used, then the encoding itself.
//
//   - k: a nested CacheKey, as its identity. The nested key is frozen.
//   - g: Go syntax (%#v), for values msgpack would encode partially, such as
//     structs with unexported fields, or cannot encode at all.
//   - m: msgpack with sorted map keys.
func encodeComponent(v any) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%T|", v)
	if key, ok := v.(*CacheKey); ok && key != nil {
		buf.WriteByte('k')
		if id, ok := key.Identity().(keyIdentity); ok {
			buf.WriteString(id.encoded)
		} else {
			fmt.Fprintf(&buf, "null@%p", key)
		}
		return buf.Bytes()
	}
	if lossy(reflect.ValueOf(v), 0) {
		fmt.Fprintf(&buf, "g%#v", v)
		return buf.Bytes()
	}
	buf.WriteByte('m')
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		buf.Reset()
		fmt.Fprintf(&buf, "%T|g%#v", v, v)
	}
	return buf.Bytes()
}

// lossy reports whether msgpack would drop information from v: unexported
// or skipped struct fields, funcs, channels, or nesting too deep to check.
// Types that encode themselves are trusted.
func lossy(v reflect.Value, depth int) bool {
	if !v.IsValid() {
		return false
	}
	if depth > maxComponentDepth {
		return true
	}
	t := v.Type()
	if encodesItself(t) {
		return false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return !v.IsNil() && lossy(v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() <= reflect.Complex128 || t.Elem().Kind() == reflect.String {
			return false
		}
		for i := 0; i < v.Len(); i++ {
			if lossy(v.Index(i), depth+1) {
				return true
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if lossy(iter.Key(), depth+1) || lossy(iter.Value(), depth+1) {
				return true
			}
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || skippedField(f) {
				return true
			}
			if lossy(v.Field(i), depth+1) {
				return true
			}
		}
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	}
	return false
}

// skippedField reports a field msgpack leaves out. Without a msgpack tag
// the json tag applies.
func skippedField(f reflect.StructField) bool {
	tag, ok := f.Tag.Lookup("msgpack")
	if !ok {
		tag = f.Tag.Get("json")
	}
	return tag == "-"
}

func encodesItself(t reflect.Type) bool {
	return t.Implements(customEncoderType) ||
		t.Implements(marshalerType) ||
		t.Implements(binaryMarshalerType) ||
		t.Implements(textMarshalerType)
}
