package crypto

import (
	"errors"
	"invoice_router/internal/domain"
	"testing"
	"time"
)

func TestSigner_SignAndVerify(t *testing.T) {
	s := NewSigner("secret", nil)
	doc := []byte(`{"id":"g-1"}`)

	sig := s.Sign(doc)

	if ok, err := s.Verify(doc, sig); !ok || err != nil {
		t.Fatalf("expected signature to verify, got ok=%v err=%v", ok, err)
	}
	if ok, err := s.Verify([]byte(`{"id":"g-2"}`), sig); ok || !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected tampered document to fail, got ok=%v err=%v", ok, err)
	}
}

func TestSigner_DifferentKeys(t *testing.T) {
	doc := []byte("payload")

	if NewSigner("a", nil).Sign(doc) == NewSigner("b", nil).Sign(doc) {
		t.Error("expected signatures from different keys to differ")
	}
}

func TestSigner_SignTrace(t *testing.T) {
	s := NewSigner("secret", nil)
	trace := domain.NewExecutionTrace("run-1", "g-1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	trace.Steps = append(trace.Steps, domain.ExecutionStep{NodeID: "t", NodeKind: domain.KindTrigger, Status: domain.StepPassed})
	trace.Finish(3 * time.Millisecond)

	sig, err := s.SignTrace(trace)
	if err != nil {
		t.Fatalf("unexpected error on SignTrace: %v", err)
	}
	trace.Signature = sig

	if ok, err := s.VerifyTrace(trace); !ok || err != nil {
		t.Fatalf("expected trace to verify, got ok=%v err=%v", ok, err)
	}

	trace.FinalAction = "Routed to Mallory"
	if ok, _ := s.VerifyTrace(trace); ok {
		t.Error("expected modified trace to fail verification")
	}
}
