// Package codec implements the binary self-describing value codec shared by the
// write-ahead log and on-disk segments: a tagged, length-prefixed framing for a
// closed set of scalar types, plus a streaming decoder that can resume across
// partial reads.
package codec

import "fmt"

// Kind identifies which of the four supported scalar types a Value holds.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindSymbol
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindSymbol:
		return "symbol"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged union over the four scalar types the tree can store as a key
// or a value. Zero Value is the int64 zero.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string // symbol name, or raw string/bytes payload
}

// Int constructs an int64-typed Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float constructs a float64-typed Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Symbol constructs a symbol-typed Value. The name is not validated against the
// intern table until it is encoded and decoded; construction alone never fails.
func Symbol(name string) Value { return Value{kind: KindSymbol, s: name} }

// String constructs a string-typed (opaque bytes) Value.
func String(b []byte) Value { return Value{kind: KindString, s: string(b)} }

func (v Value) Kind() Kind { return v.kind }

// Int64 returns the underlying int64. Panics if Kind() != KindInt.
func (v Value) Int64() int64 {
	if v.kind != KindInt {
		panic("codec: Int64 called on non-int Value")
	}
	return v.i
}

// Float64 returns the underlying float64. Panics if Kind() != KindFloat.
func (v Value) Float64() float64 {
	if v.kind != KindFloat {
		panic("codec: Float64 called on non-float Value")
	}
	return v.f
}

// SymbolName returns the underlying symbol name. Panics if Kind() != KindSymbol.
func (v Value) SymbolName() string {
	if v.kind != KindSymbol {
		panic("codec: SymbolName called on non-symbol Value")
	}
	return v.s
}

// Bytes returns the underlying opaque bytes. Panics if Kind() != KindString.
func (v Value) Bytes() []byte {
	if v.kind != KindString {
		panic("codec: Bytes called on non-string Value")
	}
	return []byte(v.s)
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("Int(%d)", v.i)
	case KindFloat:
		return fmt.Sprintf("Float(%v)", v.f)
	case KindSymbol:
		return fmt.Sprintf("Symbol(%q)", v.s)
	case KindString:
		return fmt.Sprintf("String(%q)", v.s)
	default:
		return "Value(invalid)"
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindSymbol, KindString:
		return v.s == other.s
	default:
		return false
	}
}

// Pair is a decoded (key, value) term pair, the unit streams and segments work in.
type Pair struct {
	Key   Value
	Value Value
}
