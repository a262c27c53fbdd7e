package pdbsym

import "testing"

func TestModuleBaseRVA(t *testing.T) {
	var m moduleBase

	if _, ok := m.rva(0x1000); ok {
		t.Fatal("rva on an unset moduleBase should report unknown")
	}

	m.set(0x400000, 0x2000)

	cases := []struct {
		va     uint64
		want   uint32
		wantOK bool
	}{
		{0x400000, 0, true},          // base itself
		{0x400fff, 0xfff, true},      // last byte inside the module
		{0x402000, 0, false},         // one past the end, exclusive
		{0x3fffff, 0, false},         // one before the base
	}
	for _, c := range cases {
		got, ok := m.rva(c.va)
		if ok != c.wantOK {
			t.Errorf("rva(%#x) ok = %v, want %v", c.va, ok, c.wantOK)
			continue
		}
		if ok && got != c.want {
			t.Errorf("rva(%#x) = %#x, want %#x", c.va, got, c.want)
		}
	}
}

func TestModuleBaseSetOverwritesPreviousLoadAddress(t *testing.T) {
	var m moduleBase
	m.set(0x1000, 0x100)
	m.set(0x5000, 0x100)

	if _, ok := m.rva(0x1050); ok {
		t.Fatal("stale base range should no longer resolve after a second SetLoadAddress")
	}
	if got, ok := m.rva(0x5050); !ok || got != 0x50 {
		t.Errorf("rva(0x5050) = (%#x, %v), want (0x50, true)", got, ok)
	}
}
