package validate

import (
	"errors"
	"testing"
)

var errBase = errors.New("invalid")

func TestValidator(t *testing.T) {
	v := &Validator{}
	if err := v.Err(errBase); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	v.AddError("first %d", 1)
	err := v.Err(errBase)
	if !errors.Is(err, errBase) {
		t.Fatalf("expected error wrapping base, got %v", err)
	}
	if err.Error() != "invalid: first 1" {
		t.Errorf("unexpected message %q", err.Error())
	}

	v.AddError("second")
	if got := v.Err(errBase).Error(); got != "invalid:\nfirst 1\nsecond" {
		t.Errorf("unexpected message %q", got)
	}
	if len(v.Errors()) != 2 {
		t.Errorf("expected 2 errors, got %d", len(v.Errors()))
	}
}

func TestIsWebSocketURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"ws://localhost:7000/ws", true},
		{"wss://signal.example.com/ws?room=1", true},
		{"http://localhost:7000/ws", false},
		{"ws://", false},
		{"localhost:7000", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsWebSocketURL(tt.url); got != tt.want {
			t.Errorf("IsWebSocketURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestIsAlphanumericWithDashes(t *testing.T) {
	for _, s := range []string{"control", "ctrl-1", "data_chan"} {
		if !IsAlphanumericWithDashes(s) {
			t.Errorf("%q should be accepted", s)
		}
	}
	for _, s := range []string{"", "two words", "dot.ted"} {
		if IsAlphanumericWithDashes(s) {
			t.Errorf("%q should be rejected", s)
		}
	}
}
