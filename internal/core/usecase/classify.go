package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/mvoronkov/jobtrail/internal/core/domain"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
)

const (
	// cacheKeyBodyLimit bounds how much body feeds the cache key. Tracking
	// pixels and footers past this point never change the category.
	cacheKeyBodyLimit = 2048

	// DefaultClassificationTTL keeps reprocessed emails off the model for a
	// few weeks without letting stale verdicts live forever.
	DefaultClassificationTTL = 21 * 24 * time.Hour

	defaultClassifyTimeout = 30 * time.Second
)

// ClassifyEmailService wraps a model provider with a content-hash cache and
// the safe-default fallback. Classify never fails: a provider error degrades
// to the fallback verdict so the pipeline keeps moving.
type ClassifyEmailService struct {
	provider ports.EmailClassifier
	cache    ports.ClassificationCache
	ttl      time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewClassifyEmailService(
	provider ports.EmailClassifier,
	cache ports.ClassificationCache,
	ttl time.Duration,
	timeout time.Duration,
	logger *slog.Logger,
) *ClassifyEmailService {
	if ttl <= 0 {
		ttl = DefaultClassificationTTL
	}
	if timeout <= 0 {
		timeout = defaultClassifyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassifyEmailService{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		timeout:  timeout,
		logger:   logger,
	}
}

func (s *ClassifyEmailService) Classify(ctx context.Context, email domain.ParsedEmail) domain.Classification {
	key := classificationKey(email)

	if s.cache != nil {
		if cls, ok := s.cache.Get(ctx, key); ok {
			return cls
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cls, err := s.provider.Classify(callCtx, email)
	if err != nil {
		s.logger.Warn("classification failed, using fallback",
			"error", err,
			"subject_len", len(email.Subject),
		)
		return domain.FallbackClassification()
	}

	// Fallback verdicts are never cached, whether the provider errored or
	// answered with a category outside the taxonomy: a degraded verdict must
	// not pin generic-update on an email for weeks.
	if !cls.Category.Valid() {
		s.logger.Warn("classification returned unknown category, using fallback",
			"category", string(cls.Category),
		)
		return domain.FallbackClassification()
	}
	cls = clampConfidence(cls)

	if s.cache != nil {
		s.cache.Set(ctx, key, cls, s.ttl)
	}
	return cls
}

// classificationKey hashes subject plus a bounded body prefix, so the same
// mail delivered twice hits the cache even when message ids differ.
func classificationKey(email domain.ParsedEmail) string {
	body := email.Body
	if len(body) > cacheKeyBodyLimit {
		body = body[:cacheKeyBodyLimit]
	}
	h := sha256.New()
	h.Write([]byte(email.Subject))
	h.Write([]byte{0})
	h.Write([]byte(body))
	return "cls:" + hex.EncodeToString(h.Sum(nil))
}

func clampConfidence(cls domain.Classification) domain.Classification {
	if cls.Confidence < 0 {
		cls.Confidence = 0
	}
	if cls.Confidence > 1 {
		cls.Confidence = 1
	}
	return cls
}
