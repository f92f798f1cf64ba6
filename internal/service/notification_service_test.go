package service

import (
	"context"
	"invoice_router/internal/domain"
	"strings"
	"testing"
	"time"
)

func TestNotificationService_NotifyApprover_DeliversEmail(t *testing.T) {
	email := &MockEmailService{}
	svc := NewNotificationService(email, nil, 2, 10, nil, nil)

	user := &domain.User{ID: "cfo-001", Email: "sarah.chen@example.com"}
	req := domain.ApprovalRequest{InvoiceAmount: 75000, Department: "Finance", Vendor: "Emergency Vendor"}

	if err := svc.NotifyApprover(context.Background(), user, "", "high", req); err != nil {
		t.Fatalf("unexpected error on NotifyApprover: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected error on Shutdown: %v", err)
	}

	sent := email.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if sent[0].To != "sarah.chen@example.com" {
		t.Errorf("expected recipient sarah.chen@example.com, got %s", sent[0].To)
	}
	if !strings.HasPrefix(sent[0].Body, DefaultNotificationMessage) {
		t.Errorf("expected default message, got %q", sent[0].Body)
	}
	if !strings.Contains(sent[0].Subject, "Emergency Vendor") {
		t.Errorf("expected vendor in subject, got %q", sent[0].Subject)
	}
}

func TestNotificationService_NotifyAfterShutdown(t *testing.T) {
	svc := NewNotificationService(&MockEmailService{}, &MockSlackService{}, 1, 1, nil, nil)
	_ = svc.Shutdown(context.Background())

	err := svc.NotifyChannel(context.Background(), "#approvals", "hello")
	if err != ErrServiceClosed {
		t.Errorf("expected ErrServiceClosed, got %v", err)
	}
}

func TestNotificationService_NotifyChannel(t *testing.T) {
	slack := &MockSlackService{}
	svc := NewNotificationService(nil, slack, 1, 1, nil, nil)

	if err := svc.NotifyChannel(context.Background(), "#approvals", "Invoice routed"); err != nil {
		t.Fatalf("unexpected error on NotifyChannel: %v", err)
	}
	_ = svc.Shutdown(context.Background())

	slack.mu.Lock()
	defer slack.mu.Unlock()
	if len(slack.Messages) != 1 || slack.Messages[0] != "#approvals: Invoice routed" {
		t.Errorf("unexpected slack messages %v", slack.Messages)
	}
}
