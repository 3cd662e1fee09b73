package hierarchy

import (
	"reflect"
	"testing"
)

type baseEvent struct{}
type derivedEvent struct{}
type otherEvent struct{}

type named interface {
	Name() string
}

type labeled interface {
	Label() string
}

type namedEvent struct{}

func (namedEvent) Name() string { return "named" }

type namedLabeledEvent struct{}

func (namedLabeledEvent) Name() string  { return "both" }
func (namedLabeledEvent) Label() string { return "both" }

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func TestLookup_PayloadTypeFirst(t *testing.T) {
	c := New()

	types := c.Lookup(typeOf[baseEvent]())
	if len(types) != 1 {
		t.Fatalf("expected 1 type, got %d", len(types))
	}
	if types[0] != typeOf[baseEvent]() {
		t.Errorf("expected payload type first, got %v", types[0])
	}
}

func TestLookup_DeclaredInterfaces(t *testing.T) {
	c := New()
	c.AddDeclared(typeOf[named]())
	c.AddDeclared(typeOf[labeled]())

	tests := []struct {
		name    string
		payload reflect.Type
		want    []reflect.Type
	}{
		{
			name:    "implements one",
			payload: typeOf[namedEvent](),
			want:    []reflect.Type{typeOf[namedEvent](), typeOf[named]()},
		},
		{
			name:    "implements both in declaration order",
			payload: typeOf[namedLabeledEvent](),
			want:    []reflect.Type{typeOf[namedLabeledEvent](), typeOf[named](), typeOf[labeled]()},
		},
		{
			name:    "implements none",
			payload: typeOf[otherEvent](),
			want:    []reflect.Type{typeOf[otherEvent]()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Lookup(tt.payload)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lookup(%v) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestLookup_ConcreteDeclaredTypesIgnored(t *testing.T) {
	c := New()
	c.AddDeclared(typeOf[baseEvent]())

	types := c.Lookup(typeOf[derivedEvent]())
	if len(types) != 1 {
		t.Errorf("concrete declared types must not widen, got %v", types)
	}
}

func TestRelate_TransitiveEdges(t *testing.T) {
	c := New()
	c.Relate(typeOf[derivedEvent](), typeOf[baseEvent]())
	c.Relate(typeOf[baseEvent](), typeOf[otherEvent]())

	got := c.Lookup(typeOf[derivedEvent]())
	want := []reflect.Type{typeOf[derivedEvent](), typeOf[baseEvent](), typeOf[otherEvent]()}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup = %v, want %v", got, want)
	}
}

func TestRelate_SelfAndDuplicateIgnored(t *testing.T) {
	c := New()
	c.Relate(typeOf[baseEvent](), typeOf[baseEvent]())
	c.Relate(typeOf[derivedEvent](), typeOf[baseEvent]())
	c.Relate(typeOf[derivedEvent](), typeOf[baseEvent]())

	got := c.Lookup(typeOf[derivedEvent]())
	if len(got) != 2 {
		t.Errorf("expected [derivedEvent baseEvent], got %v", got)
	}
	if len(c.Lookup(typeOf[baseEvent]())) != 1 {
		t.Error("self edge must be ignored")
	}
}

func TestLookup_MemoInvalidatedByNewInterface(t *testing.T) {
	c := New()

	// Memoize before the interface is declared.
	if got := c.Lookup(typeOf[namedEvent]()); len(got) != 1 {
		t.Fatalf("expected exact type only, got %v", got)
	}

	c.AddDeclared(typeOf[named]())

	got := c.Lookup(typeOf[namedEvent]())
	want := []reflect.Type{typeOf[namedEvent](), typeOf[named]()}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected memo invalidation after AddDeclared, got %v", got)
	}
}

func TestLookup_Deterministic(t *testing.T) {
	c := New()
	c.AddDeclared(typeOf[named]())
	c.AddDeclared(typeOf[labeled]())
	c.Relate(typeOf[namedLabeledEvent](), typeOf[baseEvent]())

	first := c.Lookup(typeOf[namedLabeledEvent]())
	for i := 0; i < 10; i++ {
		if got := c.Lookup(typeOf[namedLabeledEvent]()); !reflect.DeepEqual(got, first) {
			t.Fatalf("lookup %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestLookup_ConcurrentAccess(t *testing.T) {
	c := New()
	c.AddDeclared(typeOf[named]())

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				c.Lookup(typeOf[namedLabeledEvent]())
				c.Lookup(typeOf[namedEvent]())
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
