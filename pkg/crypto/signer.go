package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"invoice_router/internal/domain"
	"log/slog"
)

var ErrInvalidSignature = errors.New("invalid signature")

type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	signature := mac.Sum(nil)
	return hex.EncodeToString(signature)
}

func (s *Signer) Verify(data []byte, signature string) (bool, error) {
	expectedSignature := s.Sign(data)

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		s.logger.Warn("Signature verification failed",
			slog.Int("data_bytes", len(data)),
			slog.Int("signature_length", len(signature)))
		return false, ErrInvalidSignature
	}

	return true, nil
}

// SignTrace signs the JSON form of a trace with its Signature field
// cleared, so a stored trace can later be checked with VerifyTrace.
func (s *Signer) SignTrace(trace *domain.ExecutionTrace) (string, error) {
	data, err := traceBytes(trace)
	if err != nil {
		return "", err
	}
	return s.Sign(data), nil
}

func (s *Signer) VerifyTrace(trace *domain.ExecutionTrace) (bool, error) {
	data, err := traceBytes(trace)
	if err != nil {
		return false, err
	}
	return s.Verify(data, trace.Signature)
}

func traceBytes(trace *domain.ExecutionTrace) ([]byte, error) {
	unsigned := *trace
	unsigned.Signature = ""
	data, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trace: %w", err)
	}
	return data, nil
}
