package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
)

// ReceiveEmailUseCase accepts a gateway webhook event, registers a durable
// pipeline run for it and hands the message id to the queue. Receiving is
// idempotent on the message id, so gateway retries never start a second run.
type ReceiveEmailUseCase struct {
	runs    ports.RunRepository
	archive ports.PayloadArchive
	queue   ports.MessageQueue
}

func NewReceiveEmailUseCase(
	runs ports.RunRepository,
	archive ports.PayloadArchive,
	queue ports.MessageQueue,
) *ReceiveEmailUseCase {
	return &ReceiveEmailUseCase{
		runs:    runs,
		archive: archive,
		queue:   queue,
	}
}

func (uc *ReceiveEmailUseCase) Receive(ctx context.Context, event ports.InboundEmailEvent) (*domain.PipelineRun, bool, error) {
	if err := validateEvent(event); err != nil {
		return nil, false, err
	}

	if event.Email.ReceivedAt.IsZero() {
		event.Email.ReceivedAt = time.Now().UTC()
	}
	messageID := strings.TrimSpace(event.MessageID)
	if messageID == "" {
		messageID = deriveMessageID(event)
	}

	now := time.Now().UTC()
	run := &domain.PipelineRun{
		MessageID: messageID,
		UserID:    event.UserID,
		Email:     event.Email,
		Step:      domain.StepReceived,
		Status:    domain.RunPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := uc.runs.CreateIfAbsent(ctx, run)
	if err != nil {
		return nil, false, fmt.Errorf("register pipeline run: %w", err)
	}
	if !created {
		existing, err := uc.runs.Get(ctx, messageID)
		if err != nil {
			return nil, false, fmt.Errorf("load existing run: %w", err)
		}
		run = existing
	} else {
		if err := uc.archivePayload(ctx, messageID, event); err != nil {
			return nil, false, err
		}
	}

	if err := uc.queue.PublishEmailReceived(ctx, messageID); err != nil {
		return nil, false, fmt.Errorf("publish email-received event: %w", err)
	}

	return run, created, nil
}

func (uc *ReceiveEmailUseCase) archivePayload(ctx context.Context, messageID string, event ports.InboundEmailEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode inbound payload: %w", err)
	}
	key := fmt.Sprintf("inbound/%s.json", messageID)
	if err := uc.archive.Save(ctx, key, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("archive inbound payload: %w", err)
	}
	return nil
}

func validateEvent(event ports.InboundEmailEvent) error {
	if strings.TrimSpace(event.UserID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate inbound event", errors.New("missing user id"))
	}
	if strings.TrimSpace(event.Email.From) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate inbound event", errors.New("missing sender address"))
	}
	if _, err := mail.ParseAddress(event.Email.From); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate inbound event", fmt.Errorf("sender address: %w", err))
	}
	if event.Email.Subject == "" && event.Email.Body == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate inbound event", errors.New("empty subject and body"))
	}
	return nil
}

// deriveMessageID builds a stable content hash for gateways that do not send
// a Message-ID header, so redeliveries of the same mail still dedupe.
func deriveMessageID(event ports.InboundEmailEvent) string {
	h := sha256.New()
	h.Write([]byte(event.UserID))
	h.Write([]byte{0})
	h.Write([]byte(event.Email.From))
	h.Write([]byte{0})
	h.Write([]byte(event.Email.Subject))
	h.Write([]byte{0})
	h.Write([]byte(event.Email.ReceivedAt.UTC().Format(time.RFC3339)))
	h.Write([]byte{0})
	h.Write([]byte(event.Email.Body))
	return "sha256-" + hex.EncodeToString(h.Sum(nil))[:32]
}
