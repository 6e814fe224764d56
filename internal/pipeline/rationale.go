package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/viewavocats/estimia/internal/catalog"
	"github.com/viewavocats/estimia/internal/model"
	"github.com/viewavocats/estimia/internal/oracle"
	"github.com/viewavocats/estimia/internal/resilience"
)

// Texts used when the rationale oracle call itself fails.
const (
	FailedAnalysis = "Une erreur s'est produite lors de l'analyse."
	FailedSources  = "Non disponible en raison d'une erreur."
)

// RationaleStage produces the free-text explanation of a classification.
type RationaleStage struct {
	oracle   oracle.Oracle
	breaker  *resilience.Breaker
	catalog  *catalog.Catalog
	system   string
	settings StageSettings
}

// NewRationaleStage creates a rationale stage. breaker may be nil.
func NewRationaleStage(o oracle.Oracle, breaker *resilience.Breaker, cat *catalog.Catalog, system string, settings StageSettings) *RationaleStage {
	return &RationaleStage{
		oracle:   o,
		breaker:  breaker,
		catalog:  cat,
		system:   system,
		settings: settings,
	}
}

// Explain never fails. When the oracle call fails, times out or returns an
// unusable fragment, the result is degraded and marked Synthetic. Element
// names are always the catalog labels of the classified pair.
func (s *RationaleStage) Explain(ctx context.Context, req model.ClassificationRequest, cls model.ClassificationResult) model.RationaleResult {
	start := time.Now()
	raw, err := callOracle(ctx, s.oracle, s.breaker, s.settings.Timeout, oracle.Request{
		Stage:       "rationale",
		System:      s.system,
		User:        rationalePrompt(req, cls),
		Temperature: s.settings.Temperature,
		MaxTokens:   s.settings.MaxTokens,
	})

	var ex Extraction
	if err != nil {
		zap.L().Warn("rationale: oracle call failed, using catalog defaults",
			zap.Error(err),
			zap.Bool("timed_out", errors.Is(err, resilience.ErrTimedOut)),
		)
		ex = Extraction{
			Analysis:  FailedAnalysis,
			Elements:  syntheticElements(placeholderNoResponse),
			Sources:   FailedSources,
			Synthetic: true,
		}
	} else {
		ex = ExtractRationale(raw)
		if ex.Synthetic {
			zap.L().Warn("rationale: no usable JSON fragment, using catalog defaults",
				zap.Int("response_len", len(raw)),
			)
		}
	}

	domainLabel, serviceLabel := s.labels(cls)
	ex.Elements.Domain.Name = domainLabel
	ex.Elements.Service.Name = serviceLabel

	zap.L().Info("rationale complete",
		zap.Bool("synthetic", ex.Synthetic),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return model.RationaleResult{
		Analysis:  ex.Analysis,
		Elements:  ex.Elements,
		Sources:   ex.Sources,
		Synthetic: ex.Synthetic,
	}
}

// labels returns the catalog labels of the pair, falling back to the ids.
func (s *RationaleStage) labels(cls model.ClassificationResult) (string, string) {
	domainLabel, serviceLabel := cls.DomainID, cls.ServiceID
	if d, ok := s.catalog.Domain(cls.DomainID); ok {
		domainLabel = d.Label
	}
	if svc, ok := s.catalog.Service(cls.DomainID, cls.ServiceID); ok {
		serviceLabel = svc.Label
	}
	return domainLabel, serviceLabel
}
