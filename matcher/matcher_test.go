package matcher

import "testing"

func TestExact(t *testing.T) {
	m := Exact("orders.created")
	if !m.IsMatch("orders.created") {
		t.Fatal("expected exact match")
	}
	if m.IsMatch("orders.created.v2") {
		t.Fatal("expected no match on superset")
	}
}

func TestPrefix(t *testing.T) {
	m := Prefix("orders.")
	if !m.IsMatch("orders.created") || !m.IsMatch("orders.cancelled") {
		t.Fatal("expected prefix match")
	}
	if m.IsMatch("invoices.created") {
		t.Fatal("expected no match outside prefix")
	}
}

func TestPredicate(t *testing.T) {
	m := Predicate(func(topic string) bool { return len(topic) > 3 })
	if !m.IsMatch("abcd") {
		t.Fatal("expected predicate match")
	}
	if m.IsMatch("ab") {
		t.Fatal("expected predicate mismatch")
	}
}

func TestAny(t *testing.T) {
	m := Any{}
	if !m.IsMatch("") || !m.IsMatch("anything") {
		t.Fatal("expected Any to match everything")
	}
}
