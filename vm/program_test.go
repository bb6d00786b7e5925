package vm

import "testing"

func TestInternSymbolDedup(t *testing.T) {
	p := &Program{}
	a := p.InternSymbol("alpha")
	b := p.InternSymbol("beta")
	again := p.InternSymbol("alpha")

	if a == b {
		t.Errorf("distinct symbols interned to the same value")
	}
	if a != again {
		t.Errorf("re-interning must return the same value")
	}
	if p.SymbolName(a) != "alpha" || p.SymbolName(b) != "beta" {
		t.Errorf("symbol names = %q, %q", p.SymbolName(a), p.SymbolName(b))
	}
}

func TestSymbolNameOutOfRange(t *testing.T) {
	p := &Program{Symbols: []string{"only"}}
	if got := p.SymbolName(FromSymbolID(5)); got != "" {
		t.Errorf("out-of-range symbol = %q, want empty", got)
	}
	if got := p.SymbolName(FromSmallInt(0)); got != "" {
		t.Errorf("non-symbol value = %q, want empty", got)
	}
}

func TestValidate(t *testing.T) {
	good := &Program{Functions: []Function{
		{Name: "main", NumLocals: 2, Escaping: []uint8{1}},
	}}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []struct {
		name string
		p    *Program
	}{
		{"no functions", &Program{}},
		{"entry out of range", &Program{Functions: []Function{{}}, Entry: 3}},
		{"params exceed locals", &Program{Functions: []Function{{NumParams: 2, NumLocals: 1}}}},
		{"escaping local out of range", &Program{Functions: []Function{{NumLocals: 1, Escaping: []uint8{4}}}}},
	}
	for _, tc := range cases {
		if err := tc.p.Validate(); err == nil {
			t.Errorf("%s: Validate accepted a malformed program", tc.name)
		}
	}
}

func TestUnmarshalRejectsBadMetadata(t *testing.T) {
	p := &Program{Functions: []Function{{Name: "main", NumLocals: 1, Escaping: []uint8{9}}}}
	data, err := MarshalProgram(p)
	if err != nil {
		t.Fatalf("MarshalProgram: %v", err)
	}
	if _, err := UnmarshalProgram(data); err == nil {
		t.Errorf("UnmarshalProgram accepted out-of-range escape metadata")
	}
}
