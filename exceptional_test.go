package relay

import (
	"errors"
	"reflect"
	"testing"
)

func TestBus_ThrowBasic(t *testing.T) {
	bus := New()
	rec := &collector{}

	p := NewParts()
	Catch(p, func(e string) error {
		rec.add(e)
		return nil
	})
	if err := bus.RegisterHandler(p); err != nil {
		t.Fatalf("RegisterHandler failed: %v", err)
	}

	if err := bus.Throw("disk full"); err != nil {
		t.Fatalf("Throw failed: %v", err)
	}

	if got := rec.events(); !reflect.DeepEqual(got, []any{"disk full"}) {
		t.Errorf("expected [disk full], got %v", got)
	}
}

func TestBus_ChannelsAreIndependent(t *testing.T) {
	bus := New(WithSendNoSubscriberEvent(false), WithSendNoHandlerEvent(false))
	rec := &collector{}

	sub := NewParts()
	On(sub, func(e string) error {
		rec.add("subscriber")
		return nil
	})
	handler := NewParts()
	Catch(handler, func(e string) error {
		rec.add("handler")
		return nil
	})

	bus.Register(sub)
	bus.RegisterHandler(handler)

	// Post must not reach handlers, Throw must not reach subscribers.
	bus.Post("x")
	if got := rec.events(); !reflect.DeepEqual(got, []any{"subscriber"}) {
		t.Fatalf("Post leaked across channels: %v", got)
	}
	bus.Throw("x")
	if got := rec.events(); !reflect.DeepEqual(got, []any{"subscriber", "handler"}) {
		t.Errorf("Throw leaked across channels: %v", got)
	}
}

func TestBus_ThrowPriorityAndCancellation(t *testing.T) {
	bus := New()
	rec := &collector{}

	high := NewParts()
	Catch(high, func(e int) error {
		rec.add("high")
		if err := bus.CancelExceptionalDelivery(e); err != nil {
			t.Errorf("CancelExceptionalDelivery failed: %v", err)
		}
		return nil
	}, WithPriority(1))
	low := NewParts()
	Catch(low, func(e int) error {
		rec.add("low")
		return nil
	})

	bus.RegisterHandler(low)
	bus.RegisterHandler(high)

	bus.Throw(5)

	if got := rec.events(); !reflect.DeepEqual(got, []any{"high"}) {
		t.Errorf("expected cancellation to stop lower-priority handlers, got %v", got)
	}
}

func TestBus_CancelAcrossChannelsFails(t *testing.T) {
	bus := New(WithSendNoHandlerEvent(false))
	var cancelErr error

	p := NewParts()
	Catch(p, func(e string) error {
		// A handler cancelling on the events channel is outside any event
		// posting state.
		cancelErr = bus.CancelEventDelivery(e)
		return nil
	})
	bus.RegisterHandler(p)

	bus.Throw("x")

	if !errors.Is(cancelErr, ErrInvalidCancel) {
		t.Errorf("expected ErrInvalidCancel across channels, got %v", cancelErr)
	}
}

func TestBus_NoHandlerEventThrown(t *testing.T) {
	bus := New()
	rec := &collector{}

	p := NewParts()
	Catch(p, func(e NoHandlerEvent) error {
		rec.add(e)
		return nil
	})
	bus.RegisterHandler(p)

	bus.Throw(404)

	got := rec.events()
	if len(got) != 1 {
		t.Fatalf("expected one NoHandlerEvent, got %v", got)
	}
	nhe := got[0].(NoHandlerEvent)
	if nhe.Event != 404 {
		t.Errorf("expected original exceptional event, got %v", nhe.Event)
	}
}

func TestBus_HandlerExceptionEventThrown(t *testing.T) {
	bus := New(WithLogHandlerExceptions(false), WithSendNoHandlerEvent(false))
	rec := &collector{}
	boom := errors.New("handler boom")

	failing := NewParts()
	Catch(failing, func(e string) error {
		return boom
	})
	watcher := NewParts()
	Catch(watcher, func(e HandlerExceptionEvent) error {
		rec.add(e)
		return nil
	})

	bus.RegisterHandler(failing)
	bus.RegisterHandler(watcher)

	bus.Throw("trigger")

	got := rec.events()
	if len(got) != 1 {
		t.Fatalf("expected one HandlerExceptionEvent, got %d", len(got))
	}
	hee := got[0].(HandlerExceptionEvent)
	if !errors.Is(hee.Err, boom) {
		t.Errorf("expected cause preserved, got %v", hee.Err)
	}
}

func TestBus_HandlerUnregisterRoundTrip(t *testing.T) {
	bus := New(WithSendNoHandlerEvent(false))
	rec := &collector{}

	p := NewParts()
	Catch(p, func(e string) error {
		rec.add(e)
		return nil
	})

	bus.RegisterHandler(p)
	if !bus.IsHandlerRegistered(p) {
		t.Error("expected handler registered")
	}
	bus.UnregisterHandler(p)
	if bus.IsHandlerRegistered(p) {
		t.Error("expected handler unregistered")
	}

	bus.Throw("dropped")
	if got := rec.events(); len(got) != 0 {
		t.Errorf("expected no delivery after unregister, got %v", got)
	}

	if err := bus.RegisterHandler(p); err != nil {
		t.Fatalf("re-RegisterHandler failed: %v", err)
	}
	bus.Throw("delivered")
	if got := rec.events(); !reflect.DeepEqual(got, []any{"delivered"}) {
		t.Errorf("expected delivery after re-register, got %v", got)
	}
}

func TestBus_ThrowRecursive(t *testing.T) {
	bus := New(WithSendNoHandlerEvent(false))
	rec := &collector{}

	p := NewParts()
	Catch(p, func(e int) error {
		rec.add(e)
		if e < 3 {
			return bus.Throw(e + 1)
		}
		return nil
	})
	bus.RegisterHandler(p)

	bus.Throw(1)

	want := []any{1, 2, 3}
	if got := rec.events(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
