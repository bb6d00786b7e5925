package vm

// Value represents a Kestrel value using NaN-boxing.
//
// All values are encoded as 64-bit words in the quiet NaN space of IEEE 754
// doubles: a quiet NaN prefix, tag bits to distinguish types, and a 48-bit
// payload. Kestrel has no float type, so every valid Value carries a tag;
// the NaN-space layout is kept so the encoding stays compact and copyable.
//
// Encoding scheme:
//   - SmallInt: Quiet NaN + tagInt + 48-bit signed payload
//   - Special:  Quiet NaN + tagSpecial + special value ID (nil/true/false)
//   - Symbol:   Quiet NaN + tagSymbol + interned symbol ID
//   - Handle:   Quiet NaN + tagHandle + handle kind byte + 32-bit arena offset
//   - Closure:  Quiet NaN + tagClosure + 32-bit arena offset of capture record
//   - Actor:    Quiet NaN + tagActor + actor ID
//   - Cap:      Quiet NaN + tagCap + capability kind byte + 32-bit amount
type Value uint64

// NaN-boxing constants
const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0
	// 0x7FF8_0000_0000_0000
	nanBits uint64 = 0x7FF8000000000000

	// Tag mask: 3 bits within the NaN mantissa space
	tagMask uint64 = 0x0007000000000000

	// Payload mask: 48 bits
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	// Tag values (shifted into position)
	tagInt     uint64 = 0x0001000000000000 // 48-bit signed integer
	tagSpecial uint64 = 0x0002000000000000 // nil, true, false
	tagSymbol  uint64 = 0x0003000000000000 // interned symbol ID
	tagHandle  uint64 = 0x0004000000000000 // arena handle (pair or raw record)
	tagClosure uint64 = 0x0005000000000000 // arena handle of a closure record
	tagActor   uint64 = 0x0006000000000000 // actor identifier
	tagCap     uint64 = 0x0007000000000000 // capability token

	// Sign bit for 48-bit integer sign extension
	intSignBit uint64 = 0x0000800000000000

	// Mask for sign extension
	intSignExtend uint64 = 0xFFFF000000000000
)

// Handle kind byte (bits 40-47 of the payload) for tagHandle values.
const (
	handlePair uint64 = 0x0000010000000000
	handleRaw  uint64 = 0x0000020000000000

	handleKindMask   uint64 = 0x0000FF0000000000
	handleOffsetMask uint64 = 0x000000FFFFFFFFFF
)

// Special value payloads
const (
	specialNil   uint64 = 0
	specialTrue  uint64 = 1
	specialFalse uint64 = 2
)

// Pre-defined special values
const (
	Nil   Value = Value(nanBits | tagSpecial | specialNil)
	True  Value = Value(nanBits | tagSpecial | specialTrue)
	False Value = Value(nanBits | tagSpecial | specialFalse)
)

// SmallInt range (48-bit signed). The range is fixed by the encoding, not by
// the host integer width, so overflow behavior is identical on every host.
const (
	MaxSmallInt int64 = (1 << 47) - 1
	MinSmallInt int64 = -(1 << 47)
)

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

func (v Value) tag() uint64 {
	return uint64(v) & (nanBits | tagMask)
}

// IsSmallInt returns true if v represents a small integer.
func (v Value) IsSmallInt() bool {
	return v.tag() == (nanBits | tagInt)
}

// IsSpecial returns true if v is nil, true, or false.
func (v Value) IsSpecial() bool {
	return v.tag() == (nanBits | tagSpecial)
}

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool {
	return v == Nil
}

// IsBool returns true if v is true or false.
func (v Value) IsBool() bool {
	return v == True || v == False
}

// IsSymbol returns true if v represents an interned symbol.
func (v Value) IsSymbol() bool {
	return v.tag() == (nanBits | tagSymbol)
}

// IsPair returns true if v is an arena handle to a pair record.
func (v Value) IsPair() bool {
	return v.tag() == (nanBits|tagHandle) && uint64(v)&handleKindMask == handlePair
}

// IsRawHandle returns true if v is an arena handle to a raw record.
func (v Value) IsRawHandle() bool {
	return v.tag() == (nanBits|tagHandle) && uint64(v)&handleKindMask == handleRaw
}

// IsHandle returns true if v is any arena handle (pair or raw).
func (v Value) IsHandle() bool {
	return v.tag() == (nanBits | tagHandle)
}

// IsClosure returns true if v is an arena handle to a closure record.
func (v Value) IsClosure() bool {
	return v.tag() == (nanBits | tagClosure)
}

// IsActor returns true if v is an actor identifier.
func (v Value) IsActor() bool {
	return v.tag() == (nanBits | tagActor)
}

// IsCap returns true if v is a capability token.
func (v Value) IsCap() bool {
	return v.tag() == (nanBits | tagCap)
}

// ---------------------------------------------------------------------------
// SmallInt operations
// ---------------------------------------------------------------------------

// SmallInt returns v as an int64.
// Panics if v is not a small integer.
func (v Value) SmallInt() int64 {
	if !v.IsSmallInt() {
		panic("Value.SmallInt: not a small integer")
	}
	payload := uint64(v) & payloadMask

	// Sign extend from 48 bits to 64 bits
	if (payload & intSignBit) != 0 {
		payload |= intSignExtend
	}
	return int64(payload)
}

// FromSmallInt creates a Value from an int64.
// Panics if n is outside the SmallInt range.
func FromSmallInt(n int64) Value {
	if n > MaxSmallInt || n < MinSmallInt {
		panic("FromSmallInt: value out of range")
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask))
}

// TryFromSmallInt creates a Value from an int64, returning false if out of range.
func TryFromSmallInt(n int64) (Value, bool) {
	if n > MaxSmallInt || n < MinSmallInt {
		return Nil, false
	}
	return Value(nanBits | tagInt | (uint64(n) & payloadMask)), true
}

// ---------------------------------------------------------------------------
// Boolean operations
// ---------------------------------------------------------------------------

// Bool returns v as a bool.
// Panics if v is not true or false.
func (v Value) Bool() bool {
	switch v {
	case True:
		return true
	case False:
		return false
	default:
		panic("Value.Bool: not a boolean")
	}
}

// FromBool creates a Value from a bool.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// IsTruthy returns true if v is considered "truthy" in conditionals.
// Only false and nil are falsy; everything else is truthy.
func (v Value) IsTruthy() bool {
	return v != False && v != Nil
}

// ---------------------------------------------------------------------------
// Symbol operations
// ---------------------------------------------------------------------------

// SymbolID returns the symbol ID encoded in v.
// Panics if v is not a symbol.
func (v Value) SymbolID() uint32 {
	if !v.IsSymbol() {
		panic("Value.SymbolID: not a symbol")
	}
	return uint32(uint64(v) & payloadMask)
}

// FromSymbolID creates a Value from a symbol ID.
func FromSymbolID(id uint32) Value {
	return Value(nanBits | tagSymbol | uint64(id))
}

// ---------------------------------------------------------------------------
// Arena handle operations
// ---------------------------------------------------------------------------

// Handle returns the HeapPtr encoded in a pair, raw, or closure value.
// Panics if v carries no arena handle.
func (v Value) Handle() HeapPtr {
	switch {
	case v.IsHandle():
		return HeapPtr(uint64(v) & handleOffsetMask)
	case v.IsClosure():
		return HeapPtr(uint64(v) & payloadMask)
	}
	panic("Value.Handle: not an arena handle")
}

// FromPairHandle creates a pair value from an arena handle.
func FromPairHandle(ptr HeapPtr) Value {
	return Value(nanBits | tagHandle | handlePair | uint64(ptr))
}

// FromRawHandle creates a raw-record value from an arena handle.
func FromRawHandle(ptr HeapPtr) Value {
	return Value(nanBits | tagHandle | handleRaw | uint64(ptr))
}

// FromClosureHandle creates a closure value from an arena handle.
func FromClosureHandle(ptr HeapPtr) Value {
	return Value(nanBits | tagClosure | uint64(ptr))
}

// ---------------------------------------------------------------------------
// Actor operations
// ---------------------------------------------------------------------------

// ActorID returns the actor identifier encoded in v.
// Panics if v is not an actor value.
func (v Value) ActorID() uint32 {
	if !v.IsActor() {
		panic("Value.ActorID: not an actor")
	}
	return uint32(uint64(v) & payloadMask)
}

// FromActorID creates a Value from an actor identifier.
func FromActorID(id uint32) Value {
	return Value(nanBits | tagActor | uint64(id))
}

// ---------------------------------------------------------------------------
// Capability tokens
// ---------------------------------------------------------------------------

// Capability tokens are unforgeable by construction: bytecode has no
// instruction that builds a tagCap value, so the only way a program obtains
// one is a granted RequestCap resumed by the scheduler. The kind byte lives
// in bits 40-47 of the payload, the resource amount in bits 0-31.

// CapKind returns the capability kind byte of a token.
// Panics if v is not a capability token.
func (v Value) CapKind() uint8 {
	if !v.IsCap() {
		panic("Value.CapKind: not a capability")
	}
	return uint8((uint64(v) >> 40) & 0xFF)
}

// CapAmount returns the resource amount carried by a token (zero for
// non-resource capabilities).
func (v Value) CapAmount() uint32 {
	if !v.IsCap() {
		panic("Value.CapAmount: not a capability")
	}
	return uint32(uint64(v) & 0xFFFFFFFF)
}

// FromCapToken creates a capability token. Only the scheduler calls this;
// tokens never originate from bytecode.
func FromCapToken(kind uint8, amount uint32) Value {
	return Value(nanBits | tagCap | (uint64(kind) << 40) | uint64(amount))
}

// ---------------------------------------------------------------------------
// Raw encoding
// ---------------------------------------------------------------------------

// Bits returns the raw 64-bit encoding of v.
func (v Value) Bits() uint64 {
	return uint64(v)
}

// ValueFromBits reconstructs a Value from its raw encoding as produced by
// Bits. The caller is responsible for the bits being a valid encoding.
func ValueFromBits(bits uint64) Value {
	return Value(bits)
}
