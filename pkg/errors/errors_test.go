package errors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrap(err, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err, msg) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
	if wrapped.Error() != "context: base" {
		t.Errorf("Wrap message: got %q", wrapped.Error())
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	wrapped := Wrapf(ErrDomainNotAllowed, "host=%s", "evil.example")
	if !Is(wrapped, ErrDomainNotAllowed) {
		t.Error("wrapped error should unwrap to ErrDomainNotAllowed")
	}
	if wrapped.Error() != "host=evil.example: domain not permitted" {
		t.Errorf("Wrapf message: got %q", wrapped.Error())
	}
}

func TestSentinelsDistinct(t *testing.T) {
	if errors.Is(ErrNotFound, ErrInvalidArg) {
		t.Error("ErrNotFound should not match ErrInvalidArg")
	}
	if errors.Is(ErrDomainNotAllowed, ErrInvalidArg) {
		t.Error("ErrDomainNotAllowed should not match ErrInvalidArg")
	}
}
