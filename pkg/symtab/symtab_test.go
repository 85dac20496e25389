package symtab

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/chazu/regc/pkg/value"
)

func TestDeclareAndLookup(t *testing.T) {
	arena := value.NewArena()
	tab := New()

	h := arena.New(value.NewPlain("n"))
	if err := tab.Declare(&Cvar{Name: "n", Type: Scalar, Binding: ValueBinding{h}}); err != nil {
		t.Fatal(err)
	}
	arr := value.NewArray("tab", big.NewInt(4))
	if err := tab.Declare(&Cvar{Name: "tab", Type: ArrayType, Binding: ArrayBinding{arr}}); err != nil {
		t.Fatal(err)
	}

	c, ok := tab.Lookup("n")
	if !ok || c.Type != Scalar {
		t.Fatalf("Lookup(n) = %v, %v", c, ok)
	}
	if got, ok := c.Handle(); !ok || got != h {
		t.Errorf("Handle = %v, %v", got, ok)
	}
	if _, ok := c.Array(); ok {
		t.Error("scalar reports an array binding")
	}

	c, _ = tab.Lookup("tab")
	if got, ok := c.Array(); !ok || got != arr {
		t.Errorf("Array = %v, %v", got, ok)
	}
	if _, ok := tab.Lookup("missing"); ok {
		t.Error("found an undeclared name")
	}
}

func TestDuplicateName(t *testing.T) {
	arena := value.NewArena()
	tab := New()
	tab.Declare(&Cvar{Name: "x", Binding: ValueBinding{arena.New(value.NewPlain("x"))}})
	err := tab.Declare(&Cvar{Name: "x", Binding: ValueBinding{arena.New(value.NewPlain("x"))}})
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}
	if tab.Len() != 1 {
		t.Errorf("Len = %d, want 1", tab.Len())
	}
}

func TestLookupByValueResolvesElementsToArray(t *testing.T) {
	arena := value.NewArena()
	tab := New()

	h := arena.New(value.NewPlain("x"))
	tab.Declare(&Cvar{Name: "x", Binding: ValueBinding{h}})
	arr := value.NewArray("a", big.NewInt(8))
	tab.Declare(&Cvar{Name: "a", Type: ArrayType, Binding: ArrayBinding{arr}})

	c, ok := tab.LookupByValue(arena, h)
	if !ok || c.Name != "x" {
		t.Errorf("LookupByValue(x) = %v, %v", c, ok)
	}

	el, err := arr.Element(arena, big.NewInt(3))
	if err != nil {
		t.Fatal(err)
	}
	c, ok = tab.LookupByValue(arena, el)
	if !ok || c.Name != "a" {
		t.Errorf("LookupByValue(a[3]) = %v, %v", c, ok)
	}

	if _, ok := tab.LookupByValue(arena, arena.New(value.NewConst(1))); ok {
		t.Error("resolved an unbound constant")
	}
}

func TestFreshness(t *testing.T) {
	arena := value.NewArena()
	tab := New()
	tab.Declare(&Cvar{Name: "x", Binding: ValueBinding{arena.New(value.NewPlain("x"))}})

	if !tab.IsFresh("x") {
		t.Error("new variable is not fresh")
	}
	tab.MarkStale("x")
	if tab.IsFresh("x") {
		t.Error("MarkStale had no effect")
	}
	tab.MarkFresh("x")
	if !tab.IsFresh("x") {
		t.Error("MarkFresh had no effect")
	}
	if tab.IsFresh("y") {
		t.Error("unknown name is fresh")
	}
}

func TestRemoveAndNames(t *testing.T) {
	arena := value.NewArena()
	tab := New()
	var hs []value.Handle
	for _, name := range []string{"c", "a", "b"} {
		h := arena.New(value.NewPlain(name))
		hs = append(hs, h)
		tab.Declare(&Cvar{Name: name, Binding: ValueBinding{h}})
	}
	if got := tab.Names(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Names = %v", got)
	}

	c, ok := tab.Remove("c")
	if !ok || c.Name != "c" {
		t.Fatalf("Remove(c) = %v, %v", c, ok)
	}
	if _, ok := tab.LookupByValue(arena, hs[0]); ok {
		t.Error("removed variable still resolves by value")
	}
	if _, ok := tab.Remove("c"); ok {
		t.Error("removed twice")
	}
	if tab.Len() != 2 {
		t.Errorf("Len = %d, want 2", tab.Len())
	}
}
