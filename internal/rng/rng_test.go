package rng

import "testing"

func TestPRNGDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		if a.Float64("x") != b.Float64("x") {
			t.Fatalf("same seed diverged at draw %d", i)
		}
		if a.IntN("y", 10) != b.IntN("y", 10) {
			t.Fatalf("same seed diverged at int draw %d", i)
		}
	}
}

func TestScriptedReplaysPerLabel(t *testing.T) {
	s := NewScripted().
		QueueFloat("attack", 0.1, 0.9).
		QueueFloat("intel", 0.5).
		QueueInt("template", 2)
	if got := s.Float64("attack"); got != 0.1 {
		t.Fatalf("first attack draw: %v", got)
	}
	if got := s.Float64("intel"); got != 0.5 {
		t.Fatalf("intel draw: %v", got)
	}
	if got := s.Float64("attack"); got != 0.9 {
		t.Fatalf("second attack draw: %v", got)
	}
	if got := s.IntN("template", 3); got != 2 {
		t.Fatalf("template draw: %v", got)
	}
}

func TestScriptedPanicsWhenExhausted(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on exhausted label")
		}
	}()
	NewScripted().Float64("missing")
}

func TestConstant(t *testing.T) {
	c := Constant{F: 0.25, N: 7}
	if c.Float64("any") != 0.25 {
		t.Fatal("constant float")
	}
	if c.IntN("any", 3) != 2 {
		t.Fatal("constant int should clamp to n-1")
	}
	if c.IntN("any", 10) != 7 {
		t.Fatal("constant int below n returns N")
	}
}
