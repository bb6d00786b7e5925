package cap

import "testing"

func TestKindCategories(t *testing.T) {
	cases := []struct {
		kind Kind
		want Category
	}{
		{MetaSelfModify, CategoryMeta},
		{MetaGrant, CategoryMeta},
		{MacroHygienic, CategoryMacro},
		{MacroUnhygienic, CategoryMacro},
		{IoSensor, CategoryIO},
		{IoPersist, CategoryIO},
		{SysSpawnActor, CategorySys},
		{SysClock, CategorySys},
		{ResMemory, CategoryResource},
		{ResTime, CategoryResource},
	}
	for _, tc := range cases {
		if got := tc.kind.Category(); got != tc.want {
			t.Errorf("%s category = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestDangerousAndAutoGrant(t *testing.T) {
	for _, k := range []Kind{SysTerminateActor, MacroUnhygienic} {
		if !k.Dangerous() {
			t.Errorf("%s should be dangerous", k)
		}
	}
	if SysSpawnActor.Dangerous() || IoActuator.Dangerous() {
		t.Errorf("spawn and actuator are not dangerous kinds")
	}
	if !MacroHygienic.AutoGrant() {
		t.Errorf("hygienic macro expansion should auto-grant")
	}
	if MacroUnhygienic.AutoGrant() || IoSensor.AutoGrant() {
		t.Errorf("only hygienic macros auto-grant")
	}
}

func TestKindByName(t *testing.T) {
	k, ok := KindByName("IoNetwork")
	if !ok || k != IoNetwork {
		t.Errorf("KindByName(IoNetwork) = %v, %v", k, ok)
	}
	if _, ok := KindByName("NoSuchKind"); ok {
		t.Errorf("unknown name should not resolve")
	}
}

func TestSetAddRemove(t *testing.T) {
	s := NewSet()
	if s.Has(IoSensor) {
		t.Errorf("empty set holds IoSensor")
	}

	s.Add(Capability{Kind: IoSensor})
	if !s.Has(IoSensor) {
		t.Errorf("IoSensor missing after Add")
	}

	if !s.Remove(IoSensor) {
		t.Errorf("Remove should report the kind was held")
	}
	if s.Has(IoSensor) {
		t.Errorf("IoSensor still held after Remove")
	}
	if s.Remove(IoSensor) {
		t.Errorf("second Remove should report absence")
	}
}

func TestSetResourceAmountsAccumulate(t *testing.T) {
	s := NewSet()
	s.Add(Capability{Kind: ResMemory, Amount: 100})
	s.Add(Capability{Kind: ResMemory, Amount: 50})
	if got := s.Amount(ResMemory); got != 150 {
		t.Errorf("amount = %d, want 150", got)
	}
}

func TestSetKindsSorted(t *testing.T) {
	s := NewSet()
	s.Add(Capability{Kind: SysClock})
	s.Add(Capability{Kind: MetaGrant})
	s.Add(Capability{Kind: IoPersist})

	kinds := s.Kinds()
	if len(kinds) != 3 {
		t.Fatalf("kinds = %v, want 3 entries", kinds)
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] >= kinds[i] {
			t.Errorf("kinds not in ascending order: %v", kinds)
		}
	}
}
