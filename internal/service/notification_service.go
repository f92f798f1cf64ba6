package service

import (
	"context"
	"errors"
	"fmt"
	"invoice_router/internal/domain"
	"log/slog"
	"sync"
	"time"
)

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSlack NotificationChannel = "slack"
)

const DefaultNotificationMessage = "Invoice requires your attention"

var ErrServiceClosed = errors.New("notification service is shut down")

type NotificationRecorder interface {
	RecordNotification(channel string)
}

type NotificationService struct {
	emailService EmailService
	slackService SlackService
	messageQueue chan NotificationMessage
	workers      int
	shutdownChan chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	recorder     NotificationRecorder
	logger       *slog.Logger
}

type NotificationMessage struct {
	Channel   NotificationChannel
	Recipient string
	Subject   string
	Message   string
	Priority  string
	Metadata  map[string]string
	CreatedAt time.Time
}

type EmailService interface {
	SendEmail(to, subject, body string) error
}

type SlackService interface {
	SendMessage(channel, message string) error
}

func NewNotificationService(
	emailService EmailService,
	slackService SlackService,
	workers int,
	queueSize int,
	recorder NotificationRecorder,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	service := &NotificationService{
		emailService: emailService,
		slackService: slackService,
		messageQueue: make(chan NotificationMessage, queueSize),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		recorder:     recorder,
		logger:       logger,
	}

	service.startWorkers()

	return service
}

// NotifyApprover queues an email to a user about an invoice. An empty
// message falls back to DefaultNotificationMessage.
func (s *NotificationService) NotifyApprover(
	ctx context.Context,
	user *domain.User,
	message string,
	priority string,
	req domain.ApprovalRequest,
) error {
	if message == "" {
		message = DefaultNotificationMessage
	}
	if priority == "" {
		priority = "medium"
	}

	body := fmt.Sprintf("%s\n\nAmount: %.2f\nDepartment: %s\nVendor: %s\nDescription: %s",
		message, req.InvoiceAmount, req.Department, req.Vendor, req.Description)

	return s.enqueue(ctx, NotificationMessage{
		Channel:   ChannelEmail,
		Recipient: user.Email,
		Subject:   fmt.Sprintf("[%s] Invoice from %s needs attention", priority, vendorOrUnknown(req.Vendor)),
		Message:   body,
		Priority:  priority,
		Metadata: map[string]string{
			"user_id":    user.ID,
			"department": req.Department,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyChannel queues a Slack message, used for team-wide notices.
func (s *NotificationService) NotifyChannel(ctx context.Context, channel, message string) error {
	return s.enqueue(ctx, NotificationMessage{
		Channel:   ChannelSlack,
		Recipient: channel,
		Message:   message,
		Priority:  "medium",
		CreatedAt: time.Now(),
	})
}

func (s *NotificationService) enqueue(ctx context.Context, msg NotificationMessage) error {
	select {
	case <-s.shutdownChan:
		return ErrServiceClosed
	default:
	}

	select {
	case s.messageQueue <- msg:
		s.logger.InfoContext(ctx, "Notification queued",
			slog.String("channel", string(msg.Channel)),
			slog.String("recipient", msg.Recipient))
		if s.recorder != nil {
			s.recorder.RecordNotification(string(msg.Channel))
		}
		return nil
	case <-s.shutdownChan:
		return ErrServiceClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *NotificationService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *NotificationService) worker(id int) {
	defer s.wg.Done()

	s.logger.Info("Notification worker started", slog.Int("worker_id", id))

	for {
		select {
		case msg := <-s.messageQueue:
			s.processNotification(msg, id)
		case <-s.shutdownChan:
			s.drain(id)
			s.logger.Info("Notification worker stopping", slog.Int("worker_id", id))
			return
		}
	}
}

// drain delivers whatever is still queued at shutdown.
func (s *NotificationService) drain(workerID int) {
	for {
		select {
		case msg := <-s.messageQueue:
			s.processNotification(msg, workerID)
		default:
			return
		}
	}
}

func (s *NotificationService) processNotification(msg NotificationMessage, workerID int) {
	startTime := time.Now()
	var err error

	switch msg.Channel {
	case ChannelEmail:
		if s.emailService == nil {
			err = errors.New("email service not configured")
		} else {
			err = s.emailService.SendEmail(msg.Recipient, msg.Subject, msg.Message)
		}
	case ChannelSlack:
		if s.slackService == nil {
			err = errors.New("slack service not configured")
		} else {
			err = s.slackService.SendMessage(msg.Recipient, msg.Message)
		}
	default:
		err = fmt.Errorf("unknown notification channel: %s", msg.Channel)
	}

	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Failed to send notification",
			slog.String("channel", string(msg.Channel)),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	} else {
		s.logger.Info("Notification sent successfully",
			slog.String("channel", string(msg.Channel)),
			slog.String("recipient", msg.Recipient),
			slog.Int("worker_id", workerID),
			slog.Duration("duration", duration))
	}
}

func (s *NotificationService) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.shutdownChan) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func vendorOrUnknown(vendor string) string {
	if vendor == "" {
		return "unknown vendor"
	}
	return vendor
}

// LogEmailService writes emails to the log instead of sending them.
type LogEmailService struct {
	Logger *slog.Logger
}

func (l *LogEmailService) SendEmail(to, subject, body string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Email delivered to log sink",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(body)))
	return nil
}

// LogSlackService writes channel messages to the log.
type LogSlackService struct {
	Logger *slog.Logger
}

func (l *LogSlackService) SendMessage(channel, message string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Slack message delivered to log sink",
		slog.String("channel", channel),
		slog.Int("message_bytes", len(message)))
	return nil
}

type SentEmail struct {
	To      string
	Subject string
	Body    string
}

type MockEmailService struct {
	mu         sync.Mutex
	SentEmails []SentEmail
}

func (m *MockEmailService) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, SentEmail{to, subject, body})
	return nil
}

func (m *MockEmailService) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.SentEmails...)
}

type MockSlackService struct {
	mu       sync.Mutex
	Messages []string
}

func (m *MockSlackService) SendMessage(channel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, channel+": "+message)
	return nil
}
