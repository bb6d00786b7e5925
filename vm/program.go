package vm

import "fmt"

// ---------------------------------------------------------------------------
// Program: the compiler boundary
// ---------------------------------------------------------------------------

// Program is a finished instruction stream plus constant pool, as produced
// by the external compiler. The interpreter trusts the per-function metadata
// (escape analysis, tail positions encoded as TAIL_CALL) and does not
// re-derive it.
type Program struct {
	Functions []Function `cbor:"1,keyasint"`
	Constants []Value    `cbor:"2,keyasint,omitempty"`
	Symbols   []string   `cbor:"3,keyasint,omitempty"` // interned symbol names; SymbolID indexes here
	Entry     uint16     `cbor:"4,keyasint"`           // index of the entry function
}

// Function is one compiled function body.
type Function struct {
	Name      string  `cbor:"1,keyasint,omitempty"`
	NumParams int     `cbor:"2,keyasint"`
	NumLocals int     `cbor:"3,keyasint"` // total locals, parameters included
	Code      []byte  `cbor:"4,keyasint"`
	Escaping  []uint8 `cbor:"5,keyasint,omitempty"` // local indices that escape into closures
}

// SymbolName resolves a symbol value against the program's symbol table.
// Returns "" for out-of-range IDs.
func (p *Program) SymbolName(v Value) string {
	if !v.IsSymbol() {
		return ""
	}
	id := int(v.SymbolID())
	if id < 0 || id >= len(p.Symbols) {
		return ""
	}
	return p.Symbols[id]
}

// InternSymbol adds a symbol name to the table if absent and returns its
// value. Builder-side helper; compiled programs arrive with the table
// already populated.
func (p *Program) InternSymbol(name string) Value {
	for i, s := range p.Symbols {
		if s == name {
			return FromSymbolID(uint32(i))
		}
	}
	p.Symbols = append(p.Symbols, name)
	return FromSymbolID(uint32(len(p.Symbols) - 1))
}

// AddConstant appends a constant and returns its pool index.
func (p *Program) AddConstant(v Value) uint16 {
	p.Constants = append(p.Constants, v)
	return uint16(len(p.Constants) - 1)
}

// Validate checks the structural integrity of compiled metadata before the
// program is handed to an interpreter: the entry point must exist, parameter
// counts must fit the locals slots, and escape annotations must name real
// locals. Bytecode itself is checked instruction by instruction at run time.
func (p *Program) Validate() error {
	if len(p.Functions) == 0 {
		return fmt.Errorf("vm: program has no functions")
	}
	if int(p.Entry) >= len(p.Functions) {
		return fmt.Errorf("vm: entry function %d out of range (%d functions)", p.Entry, len(p.Functions))
	}
	for i := range p.Functions {
		f := &p.Functions[i]
		if f.NumParams > f.NumLocals {
			return fmt.Errorf("vm: function %d: %d params exceed %d locals", i, f.NumParams, f.NumLocals)
		}
		for _, e := range f.Escaping {
			if int(e) >= f.NumLocals {
				return fmt.Errorf("vm: function %d: escaping local %d out of range", i, e)
			}
		}
	}
	return nil
}
