package pdbsym_test

import (
	"testing"

	"github.com/bbtrace/bbtrace/internal/pdbsym"
)

func TestFakeSessionVAToLine(t *testing.T) {
	f := pdbsym.NewFakeSession()
	f.PutLine(0x401000, pdbsym.SourcePosition{File: "main.cpp", Line: 42, Column: 3})

	pos, ok := f.VAToLine(0x401000)
	if !ok {
		t.Fatal("expected a hit for a registered va")
	}
	if pos.Line != 42 || pos.File != "main.cpp" {
		t.Errorf("got %+v", pos)
	}

	if _, ok := f.VAToLine(0x999999); ok {
		t.Error("expected a miss for an unregistered va")
	}
}

func TestFakeSessionFileLineToRvaRanges(t *testing.T) {
	f := pdbsym.NewFakeSession()
	f.PutRanges("main.cpp", 42, []pdbsym.RVARange{{Start: 0x1000, End: 0x1010}})

	ranges, err := f.FileLineToRvaRanges("main.cpp", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 1 || ranges[0].Start != 0x1000 {
		t.Errorf("got %+v", ranges)
	}

	if _, err := f.FileLineToRvaRanges("other.cpp", 1); err == nil {
		t.Error("expected an error for an unregistered file:line")
	}
}

func TestFakeSessionClose(t *testing.T) {
	f := pdbsym.NewFakeSession()
	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.ClosedCalled {
		t.Error("Close should record that it was called")
	}
}
