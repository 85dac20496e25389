package ordered

import (
	"errors"
	"testing"
)

func TestInsertRejectsExistingKey(t *testing.T) {
	m := New[uint64, string]()
	if err := m.Insert(3, "a"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := m.Insert(3, "b"); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("second Insert err = %v, want ErrKeyExists", err)
	}
	if v, _ := m.Get(3); v != "a" {
		t.Errorf("Get(3) = %q, want a (untouched)", v)
	}
}

func TestDeleteAndHas(t *testing.T) {
	m := New[string, int]()
	m.Set("x", 1)
	m.Set("y", 2)

	v, ok := m.Delete("x")
	if !ok || v != 1 {
		t.Fatalf("Delete(x) = %d, %v", v, ok)
	}
	if m.Has("x") {
		t.Error("x still present after Delete")
	}
	if _, ok := m.Delete("x"); ok {
		t.Error("second Delete(x) reported success")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestAscendIsKeyOrdered(t *testing.T) {
	m := New[uint64, int]()
	for _, k := range []uint64{9, 2, 7, 4, 1} {
		m.Set(k, int(k))
	}

	var got []uint64
	m.Ascend(func(k uint64, _ int) bool {
		got = append(got, k)
		return true
	})
	want := []uint64{1, 2, 4, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("Ascend visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Ascend visited %v, want %v", got, want)
		}
	}
}

func TestAscendRangeIsInclusive(t *testing.T) {
	m := New[uint64, int]()
	for k := uint64(0); k < 10; k++ {
		m.Set(k, 0)
	}

	var got []uint64
	m.AscendRange(3, 6, func(k uint64, _ int) bool {
		got = append(got, k)
		return true
	})
	if len(got) != 4 || got[0] != 3 || got[3] != 6 {
		t.Errorf("AscendRange(3, 6) = %v, want [3 4 5 6]", got)
	}
}

func TestKeys(t *testing.T) {
	m := New[string, bool]()
	m.Set("b", true)
	m.Set("a", true)
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys = %v, want [a b]", keys)
	}
}
