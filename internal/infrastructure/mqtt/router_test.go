package mqtt

import (
	"errors"
	"sync"
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		// literal
		{"a/b/c", "a/b/c", true},
		{"a/b/c", "a/b/d", false},
		{"a/b/c", "a/b", false},
		{"a/b/c", "a/b/c/d", false},

		// single-level wildcard
		{"+/status/controller", "AGL12/status/controller", true},
		{"+/status/controller", "AGL12/status/dispDevice", false},
		{"+/status/controller", "AGL12/status/controller/extra", false},
		{"+/+/+", "a/b/c", true},
		{"+/+/+", "a/b", false},

		// multi-level wildcard
		{"a/#", "a/b", true},
		{"a/#", "a/b/c/d", true},
		{"a/#", "a", false},
		{"a/#", "b/c", false},
		{"#", "a", true},
		{"#", "a/b/c", true},
		{"a/+/#", "a/x/y", true},
		{"a/+/#", "a/x", false},
	}

	for _, tt := range tests {
		if got := Match(tt.pattern, tt.topic); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
		}
	}
}

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter()

	var mu sync.Mutex
	var got []string
	record := func(name string) MessageHandler {
		return func(topic string, payload []byte) error {
			mu.Lock()
			got = append(got, name+":"+topic+":"+string(payload))
			mu.Unlock()
			return nil
		}
	}

	r.Handle(PatternControllerStatus, record("ctrl"))
	r.Handle(PatternDisplayDeviceStatus, record("disp"))

	if err := r.Dispatch("AGL12/status/controller", []byte("payload")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "ctrl:AGL12/status/controller:payload" {
		t.Errorf("Dispatch() invoked = %v, want exactly the controller handler", got)
	}
}

func TestRouter_Dispatch_NoMatch(t *testing.T) {
	r := NewRouter()

	called := false
	r.Handle("+/status/controller", func(string, []byte) error {
		called = true
		return nil
	})

	if err := r.Dispatch("AGL12/command/reset", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if called {
		t.Error("handler invoked for non-matching topic")
	}
}

func TestRouter_Dispatch_MultipleMatches(t *testing.T) {
	r := NewRouter()

	count := 0
	handler := func(string, []byte) error {
		count++
		return nil
	}
	r.Handle("+/status/controller", handler)
	r.Handle("AGL12/#", handler)

	if err := r.Dispatch("AGL12/status/controller", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if count != 2 {
		t.Errorf("matching handlers invoked = %d, want 2", count)
	}
}

func TestRouter_Dispatch_HandlerErrorDoesNotHalt(t *testing.T) {
	r := NewRouter()

	second := false
	r.Handle("+/status/controller", func(string, []byte) error {
		return errors.New("boom")
	})
	r.Handle("+/status/#", func(string, []byte) error {
		second = true
		return nil
	})

	if err := r.Dispatch("AGL12/status/controller", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !second {
		t.Error("second handler not invoked after first handler error")
	}
}

func TestRouter_Dispatch_HandlerPanicRecovered(t *testing.T) {
	r := NewRouter()

	second := false
	r.Handle("+/status/controller", func(string, []byte) error {
		panic("boom")
	})
	r.Handle("+/status/#", func(string, []byte) error {
		second = true
		return nil
	})

	if err := r.Dispatch("AGL12/status/controller", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !second {
		t.Error("second handler not invoked after first handler panic")
	}
}

func TestRouter_Patterns(t *testing.T) {
	r := NewRouter()
	r.Handle(PatternControllerStatus, func(string, []byte) error { return nil })
	r.Handle(PatternDisplayDeviceStatus, func(string, []byte) error { return nil })

	patterns := r.Patterns()
	if len(patterns) != 2 || patterns[0] != PatternControllerStatus || patterns[1] != PatternDisplayDeviceStatus {
		t.Errorf("Patterns() = %v", patterns)
	}
}

func TestNewClientID(t *testing.T) {
	a := NewClientID()
	b := NewClientID()

	if len(a) <= len("dolphin-") || a[:8] != "dolphin-" {
		t.Errorf("NewClientID() = %q, want dolphin-<hex> form", a)
	}
	if a == b {
		t.Errorf("NewClientID() returned identical ids %q", a)
	}
}
