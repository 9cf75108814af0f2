package explain

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

// Cache is the subset of the explanation cache the service needs.
type Cache interface {
	Get(ctx context.Context, result *domain.RiskAssessmentResult) (*domain.Explanation, bool, error)
	Set(ctx context.Context, result *domain.RiskAssessmentResult, explanation *domain.Explanation) error
}

// Service produces an explanation for every assessment: cache first, then the
// chat endpoint if one is configured, templates as the guaranteed fallback.
// It never returns an error; the engine's output must not depend on the
// availability of the explainer.
type Service struct {
	client    *ChatClient
	templates *TemplateRenderer
	cache     Cache
	logger    *logrus.Logger
}

// NewService wires the explanation pipeline. client and cache may be nil.
func NewService(client *ChatClient, cache Cache, logger *logrus.Logger) *Service {
	return &Service{
		client:    client,
		templates: NewTemplateRenderer(),
		cache:     cache,
		logger:    logger,
	}
}

// Explain returns an explanation for a frozen assessment result.
func (s *Service) Explain(ctx context.Context, result *domain.RiskAssessmentResult) *domain.Explanation {
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, result); err != nil {
			s.logger.WithError(err).Warn("Explanation cache lookup failed")
		} else if ok {
			return cached
		}
	}

	explanation := s.generate(ctx, result)

	if s.cache != nil {
		if err := s.cache.Set(ctx, result, explanation); err != nil {
			s.logger.WithError(err).Warn("Explanation cache store failed")
		}
	}
	return explanation
}

func (s *Service) generate(ctx context.Context, result *domain.RiskAssessmentResult) *domain.Explanation {
	if s.client == nil {
		return s.templates.Render(result)
	}
	explanation, err := s.client.Generate(ctx, result)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"gene": result.Gene,
			"drug": result.Drug,
		}).Warn("Chat explainer failed, using template explanation")
		return s.templates.Render(result)
	}
	return explanation
}
