package pipeline

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/viewavocats/estimia/internal/catalog"
	"github.com/viewavocats/estimia/internal/model"
	"github.com/viewavocats/estimia/internal/oracle"
	"github.com/viewavocats/estimia/internal/resilience"
)

// StageSettings are the generation parameters and deadline of one oracle stage.
type StageSettings struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// ClassificationStage maps a free-text request to a catalog domain and
// service through the oracle.
type ClassificationStage struct {
	oracle   oracle.Oracle
	breaker  *resilience.Breaker
	catalog  *catalog.Catalog
	system   string
	settings StageSettings
}

// NewClassificationStage creates a classification stage. breaker may be nil.
func NewClassificationStage(o oracle.Oracle, breaker *resilience.Breaker, cat *catalog.Catalog, system string, settings StageSettings) *ClassificationStage {
	return &ClassificationStage{
		oracle:   o,
		breaker:  breaker,
		catalog:  cat,
		system:   system,
		settings: settings,
	}
}

// Classify asks the oracle for a classification and verifies it against the
// catalog. It returns a *TimeoutError when the deadline elapses and a
// *ClassificationError when the oracle fails or answers with unusable JSON.
func (s *ClassificationStage) Classify(ctx context.Context, req model.ClassificationRequest) (model.ClassificationResult, error) {
	start := time.Now()
	raw, err := callOracle(ctx, s.oracle, s.breaker, s.settings.Timeout, oracle.Request{
		Stage:       "classification",
		System:      s.system,
		User:        classifyPrompt(req, s.catalog),
		Temperature: s.settings.Temperature,
		MaxTokens:   s.settings.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, resilience.ErrTimedOut) {
			return model.ClassificationResult{}, &TimeoutError{Stage: "classification", Deadline: s.settings.Timeout}
		}
		zap.L().Warn("classification: oracle call failed", zap.Error(err))
		return model.ClassificationResult{}, &ClassificationError{Cause: ReasonOracleFailure, Err: err}
	}

	res, err := parseClassification(raw, s.catalog)
	if err != nil {
		zap.L().Warn("classification: unusable oracle response",
			zap.Error(err),
			zap.Int("response_len", len(raw)),
		)
		return model.ClassificationResult{}, &ClassificationError{Cause: ReasonMalformedResponse, Err: err}
	}

	zap.L().Info("classification complete",
		zap.String("domain", res.DomainID),
		zap.String("service", res.ServiceID),
		zap.Float64("confidence", res.Confidence),
		zap.Bool("legally_relevant", res.LegallyRelevant),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

// callOracle runs one completion under the stage deadline. The breaker wraps
// the deadline so a hanging oracle counts as a failure.
func callOracle(ctx context.Context, o oracle.Oracle, b *resilience.Breaker, timeout time.Duration, req oracle.Request) (string, error) {
	return resilience.Call(ctx, b, func(ctx context.Context) (string, error) {
		return resilience.RunWithDeadline(ctx, timeout, func(ctx context.Context) (string, error) {
			return o.Complete(ctx, req)
		})
	})
}

var requiredClassificationKeys = []string{"est_juridique", "domaine", "prestation", "indice_confiance"}

// parseClassification decodes the oracle's JSON answer. Code fences and text
// around the object are tolerated; missing or mistyped keys are not.
func parseClassification(raw string, cat *catalog.Catalog) (model.ClassificationResult, error) {
	body := cleanJSON(raw)
	if !gjson.Valid(body) {
		return model.ClassificationResult{}, eris.New("response is not valid JSON")
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return model.ClassificationResult{}, eris.New("response is not a JSON object")
	}
	for _, key := range requiredClassificationKeys {
		if !doc.Get(key).Exists() {
			return model.ClassificationResult{}, eris.Errorf("missing key %q", key)
		}
	}

	relevant := doc.Get("est_juridique")
	if relevant.Type != gjson.True && relevant.Type != gjson.False {
		return model.ClassificationResult{}, eris.New("est_juridique is not a boolean")
	}
	domain := doc.Get("domaine")
	service := doc.Get("prestation")
	if domain.Type != gjson.String || service.Type != gjson.String {
		return model.ClassificationResult{}, eris.New("domaine and prestation must be strings")
	}
	confidence, err := parseConfidence(doc.Get("indice_confiance"))
	if err != nil {
		return model.ClassificationResult{}, err
	}

	res := model.ClassificationResult{
		DomainID:   strings.TrimSpace(domain.String()),
		ServiceID:  strings.TrimSpace(service.String()),
		Confidence: confidence,
	}
	if expl := doc.Get("explication"); expl.Type == gjson.String {
		res.Explanation = strings.TrimSpace(expl.String())
	}
	res.LegallyRelevant = relevant.Bool() && cat.Contains(res.DomainID, res.ServiceID)
	return res, nil
}

func parseConfidence(v gjson.Result) (float64, error) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, eris.Wrap(err, "indice_confiance is not a number")
		}
		f = parsed
	default:
		return 0, eris.New("indice_confiance is not a number")
	}
	if math.IsNaN(f) {
		return 0, eris.New("indice_confiance is NaN")
	}
	return math.Max(0, math.Min(1, f)), nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or prose around it.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
