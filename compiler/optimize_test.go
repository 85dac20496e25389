package compiler

import (
	"math/big"
	"testing"
)

func TestOperatorApply(t *testing.T) {
	tests := []struct {
		op   Operator
		a, b int64
		want int64
	}{
		{OpAdd, 2, 3, 5},
		{OpSub, 7, 3, 4},
		{OpSub, 3, 7, 0},
		{OpMul, 6, 7, 42},
		{OpDiv, 7, 2, 3},
		{OpDiv, 7, 0, 0},
		{OpMod, 7, 3, 1},
		{OpMod, 7, 0, 0},
		{OpNone, 9, 0, 9},
	}
	for _, tc := range tests {
		got := tc.op.Apply(big.NewInt(tc.a), big.NewInt(tc.b))
		if got.Int64() != tc.want {
			t.Errorf("%d %s %d = %s, want %d", tc.a, tc.op, tc.b, got, tc.want)
		}
	}
}

func TestRelationNegate(t *testing.T) {
	a, b := big.NewInt(3), big.NewInt(5)
	for r := RelEq; r <= RelGe; r++ {
		for _, pair := range [][2]*big.Int{{a, b}, {b, a}, {a, a}} {
			if r.Holds(pair[0], pair[1]) == r.Negate().Holds(pair[0], pair[1]) {
				t.Errorf("%s and %s agree on %s, %s", r, r.Negate(), pair[0], pair[1])
			}
		}
	}
}

func optimized(t *testing.T, src string) []Command {
	t.Helper()
	return Optimize(mustParse(t, src)).Body
}

func assignedExpr(t *testing.T, cmd Command) *Expression {
	t.Helper()
	as, ok := cmd.(*Assign)
	if !ok {
		t.Fatalf("command = %#v, want assignment", cmd)
	}
	return as.Expr
}

func TestOptimizeFoldsExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want string // number, or identifier name
	}{
		{"2 + 3", "5"},
		{"2 - 3", "0"},
		{"6 * 7", "42"},
		{"9 / 0", "0"},
		{"9 % 4", "1"},
		{"a + 0", "a"},
		{"0 + a", "a"},
		{"a - 0", "a"},
		{"0 - a", "0"},
		{"a - a", "0"},
		{"a * 1", "a"},
		{"1 * a", "a"},
		{"a * 0", "0"},
		{"a / 1", "a"},
		{"a / 0", "0"},
		{"0 / a", "0"},
		{"a % 1", "0"},
		{"a % 0", "0"},
	}
	for _, tc := range tests {
		body := optimized(t, "VAR a b BEGIN b := "+tc.expr+"; END")
		e := assignedExpr(t, body[0])
		if e.Op != OpNone {
			t.Errorf("%s: not folded (op %s)", tc.expr, e.Op)
			continue
		}
		var got string
		switch v := e.Left.(type) {
		case *Number:
			got = v.Value.String()
		case *Identifier:
			got = v.Name
		}
		if got != tc.want {
			t.Errorf("%s folded to %s, want %s", tc.expr, got, tc.want)
		}
	}
}

func TestOptimizeLeavesDynamicArithmetic(t *testing.T) {
	body := optimized(t, "VAR a b BEGIN b := a * b; b := a / a; END")
	for i, cmd := range body {
		if e := assignedExpr(t, cmd); e.Op == OpNone {
			t.Errorf("command %d folded", i)
		}
	}
}

func TestOptimizeDropsSelfAssignment(t *testing.T) {
	body := optimized(t, "VAR a t[2] BEGIN a := a; t[1] := t[1]; t[a] := t[a]; WRITE a; END")
	if len(body) != 1 {
		t.Fatalf("body = %d commands, want 1", len(body))
	}
}

func TestOptimizeDecidesBranches(t *testing.T) {
	body := optimized(t, `VAR a BEGIN
	IF 1 < 2 THEN a := 1; ELSE a := 2; ENDIF
	IF a <> a THEN a := 3; ENDIF
	WHILE 3 = 4 DO a := 5; ENDWHILE
	FOR i FROM 5 TO 4 DO WRITE i; ENDFOR
	FOR i FROM 4 DOWNTO 5 DO WRITE i; ENDFOR
	FOR i FROM 4 TO 4 DO WRITE i; ENDFOR
END`)
	if len(body) != 2 {
		t.Fatalf("body = %d commands: %#v", len(body), body)
	}
	e := assignedExpr(t, body[0])
	if n, ok := e.Left.(*Number); !ok || n.Value.Int64() != 1 {
		t.Errorf("kept wrong branch: %#v", e.Left)
	}
	if _, ok := body[1].(*For); !ok {
		t.Errorf("single-iteration FOR removed")
	}
}

func TestOptimizeRewritesSelfComparison(t *testing.T) {
	body := optimized(t, `VAR a BEGIN WHILE a >= a DO READ a; ENDWHILE END`)
	wh, ok := body[0].(*While)
	if !ok {
		t.Fatalf("body[0] = %#v", body[0])
	}
	holds, static := wh.Cond.Static()
	if !static || !holds {
		t.Errorf("condition static=%v holds=%v", static, holds)
	}
}
