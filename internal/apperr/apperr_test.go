package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"config", Configf("plan", "budget %d too small", 10), "configuration error: plan: budget 10 too small"},
		{"transport with cause", Transportf("check", io.EOF, "batch %d", 2), "transport error: check: batch 2: EOF"},
		{"no op", &Error{Kind: Transport, Message: "boom"}, "transport error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs_WrappedChain(t *testing.T) {
	base := Transportf("check", io.ErrUnexpectedEOF, "reading body")
	wrapped := fmt.Errorf("batch 3: %w", base)

	if !IsTransport(wrapped) {
		t.Error("IsTransport should see through fmt.Errorf wrapping")
	}
	if IsConfig(wrapped) {
		t.Error("IsConfig should be false for a transport error")
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("Unwrap should expose the cause")
	}
	if Is(errors.New("plain"), Configuration) {
		t.Error("plain errors have no kind")
	}
}

func TestKind_String(t *testing.T) {
	if Configuration.String() != "configuration" {
		t.Errorf("Configuration.String() = %q", Configuration.String())
	}
	if Kind(42).String() != "unknown" {
		t.Errorf("Kind(42).String() = %q", Kind(42).String())
	}
}
