// Package pipeline turns a free-text client request into a priced estimate:
// rate gating, oracle classification, catalog pricing and an oracle
// rationale. It also carries the contact-message path gated by the
// anti-spam guard.
package pipeline

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viewavocats/estimia/internal/antispam"
	"github.com/viewavocats/estimia/internal/catalog"
	"github.com/viewavocats/estimia/internal/config"
	"github.com/viewavocats/estimia/internal/model"
	"github.com/viewavocats/estimia/internal/notify"
	"github.com/viewavocats/estimia/internal/oracle"
	"github.com/viewavocats/estimia/internal/ratelimit"
	"github.com/viewavocats/estimia/internal/resilience"
	"github.com/viewavocats/estimia/internal/session"
)

const (
	// LowConfidenceThreshold is the confidence below which an estimate is
	// flagged low_confidence.
	LowConfidenceThreshold = 0.5

	// ConsultationServiceID is the catalog service recommended alongside
	// every estimate.
	ConsultationServiceID = "consultation_initiale"

	notifyTimeout = time.Minute
)

// Options tunes the oracle stages and pricing.
type Options struct {
	Classify          StageSettings
	Rationale         StageSettings
	UrgencyMultiplier float64
	SystemPrompt      string
}

// OptionsFromConfig maps the configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config, systemPrompt string) Options {
	return Options{
		Classify: StageSettings{
			Timeout:     cfg.Timeouts.Classification(),
			Temperature: cfg.Oracle.ClassifyTemperature,
			MaxTokens:   cfg.Oracle.ClassifyMaxTokens,
		},
		Rationale: StageSettings{
			Timeout:     cfg.Timeouts.Rationale(),
			Temperature: cfg.Oracle.RationaleTemperature,
			MaxTokens:   cfg.Oracle.RationaleMaxTokens,
		},
		UrgencyMultiplier: cfg.Pricing.UrgencyMultiplier,
		SystemPrompt:      systemPrompt,
	}
}

// Pipeline sequences the stages of one estimate run. It is safe for
// concurrent use; runs for the same session are serialised on the session
// lock only while quota state is touched.
type Pipeline struct {
	catalog    *catalog.Catalog
	gate       *ratelimit.Gate
	guard      *antispam.Guard
	classifier *ClassificationStage
	rationale  *RationaleStage
	notifier   notify.Notifier
	multiplier float64

	nowFunc func() time.Time
	newID   func() string

	wg sync.WaitGroup
}

// New wires a pipeline. breaker may be nil. notifier may be nil, in which
// case records go nowhere.
func New(cat *catalog.Catalog, o oracle.Oracle, breaker *resilience.Breaker, gate *ratelimit.Gate, guard *antispam.Guard, notifier notify.Notifier, opts Options) *Pipeline {
	system := opts.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &Pipeline{
		catalog:    cat,
		gate:       gate,
		guard:      guard,
		classifier: NewClassificationStage(o, breaker, cat, system, opts.Classify),
		rationale:  NewRationaleStage(o, breaker, cat, system, opts.Rationale),
		notifier:   notifier,
		multiplier: opts.UrgencyMultiplier,
		nowFunc:    time.Now,
		newID:      uuid.NewString,
	}
}

// Catalog returns the catalog the pipeline prices against.
func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.catalog
}

// Estimate runs RateGate, ClassificationStage, PricingEngine and
// RationaleStage in order. Every failure is one of the typed errors of this
// package; a failing stage ends the run. The rationale never fails the run.
func (p *Pipeline) Estimate(ctx context.Context, sess *session.State, req model.ClassificationRequest) (*model.Estimate, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("session", sess.ID))

	sess.Lock()
	err = p.gate.Admit(&sess.Requests)
	sess.Unlock()
	if err != nil {
		var le *ratelimit.LimitError
		if errors.As(err, &le) {
			log.Info("estimate rejected by rate gate",
				zap.String("scope", string(le.Scope)),
				zap.Duration("retry_after", le.RetryAfter),
			)
			return nil, &RateLimitError{Scope: le.Scope, RetryAfter: le.RetryAfter}
		}
		return nil, err
	}

	start := p.nowFunc()
	est, err := p.run(ctx, req)
	p.dispatch(estimateRecord(p.newID(), sess.ID, start, req, est, err))

	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if f, ok := AsFailure(err); ok {
			fields = append(fields, zap.String("kind", f.Kind()), zap.String("reason", f.Reason()))
		}
		log.Warn("estimate failed", fields...)
		return nil, err
	}

	est.CreatedAt = start
	log.Info("estimate delivered",
		zap.String("estimate_id", est.ID),
		zap.String("domain", est.Classification.DomainID),
		zap.String("service", est.Classification.ServiceID),
		zap.Int("final_price", est.Price.FinalPrice),
		zap.Strings("advisories", advisoryStrings(est.Advisories)),
	)
	return est, nil
}

func (p *Pipeline) run(ctx context.Context, req model.ClassificationRequest) (*model.Estimate, error) {
	cls, err := p.classifier.Classify(ctx, req)
	if err != nil {
		return nil, err
	}

	price, err := Price(p.catalog, cls.DomainID, cls.ServiceID, req.Urgency, p.multiplier)
	if err != nil {
		return nil, err
	}

	rationale := p.rationale.Explain(ctx, req, cls)

	est := &model.Estimate{
		ID:             p.newID(),
		Request:        req,
		Classification: cls,
		Price:          price,
		Rationale:      rationale,
		Advisories:     advisories(cls, rationale),
	}
	if _, svc, ok := p.catalog.FindService(ConsultationServiceID); ok {
		est.ConsultationPrice = svc.BasePrice
	}
	return est, nil
}

func normalizeRequest(req model.ClassificationRequest) (model.ClassificationRequest, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return req, &InvalidRequestError{Cause: ReasonEmptyDescription}
	}
	if req.Description == ExampleDescription {
		return req, &InvalidRequestError{Cause: ReasonExampleText}
	}
	req.ClientType = strings.TrimSpace(req.ClientType)
	if req.ClientType == "" {
		req.ClientType = model.ClientIndividual
	}
	req.Urgency = model.ParseUrgency(string(req.Urgency))
	return req, nil
}

func advisories(cls model.ClassificationResult, r model.RationaleResult) []model.Advisory {
	var out []model.Advisory
	switch {
	case cls.Confidence < LowConfidenceThreshold:
		out = append(out, model.AdvisoryLowConfidence)
	case !cls.LegallyRelevant:
		out = append(out, model.AdvisoryNotLegal)
	}
	if r.Synthetic {
		out = append(out, model.AdvisorySyntheticElements)
	}
	return out
}

func advisoryStrings(as []model.Advisory) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}

func estimateRecord(id, sessionID string, at time.Time, req model.ClassificationRequest, est *model.Estimate, err error) notify.Record {
	rec := notify.Record{
		ID:         id,
		Kind:       notify.KindEstimate,
		SessionID:  sessionID,
		CreatedAt:  at,
		ClientType: req.ClientType,
		Urgency:    string(req.Urgency),
		Question:   req.Description,
		Outcome:    "ok",
	}
	if err != nil {
		rec.Outcome = "error"
		if f, ok := AsFailure(err); ok {
			rec.Outcome = f.Kind()
		}
		return rec
	}
	rec.Priced = true
	rec.Price = est.Price.FinalPrice
	rec.DomainLabel = est.Price.DomainLabel
	rec.ServiceLabel = est.Price.ServiceLabel
	return rec
}

// ContactMessage is a submission of the contact form.
type ContactMessage struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Message       string `json:"message"`
	CaptchaAnswer string `json:"captcha_answer"`
	Honeypot      string `json:"website"`
}

// Challenge returns the session's current captcha question.
func (p *Pipeline) Challenge(sess *session.State) string {
	sess.Lock()
	defer sess.Unlock()
	return sess.Spam.Question()
}

// SubmitContact validates a contact message, checks it against the
// anti-spam guard and hands it to the notifier. Rejections are
// *InvalidRequestError or *SpamError.
func (p *Pipeline) SubmitContact(ctx context.Context, sess *session.State, msg ContactMessage) error {
	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Message = strings.TrimSpace(msg.Message)
	if msg.Message == "" {
		return &InvalidRequestError{Cause: ReasonEmptyMessage}
	}
	if msg.Email != "" {
		addr, err := mail.ParseAddress(msg.Email)
		if err != nil {
			return &InvalidRequestError{Cause: ReasonInvalidEmail}
		}
		msg.Email = addr.Address
	}

	sess.Lock()
	err := p.guard.Verify(&sess.Spam, msg.CaptchaAnswer, msg.Honeypot)
	sess.Unlock()
	if err != nil {
		var re *antispam.RejectedError
		if errors.As(err, &re) {
			zap.L().Info("contact rejected",
				zap.String("session", sess.ID),
				zap.String("reason", string(re.Reason)),
			)
			return &SpamError{Cause: re.Reason, RetryAfter: re.RetryAfter}
		}
		return err
	}

	p.dispatch(notify.Record{
		ID:           p.newID(),
		Kind:         notify.KindContact,
		SessionID:    sess.ID,
		CreatedAt:    p.nowFunc(),
		Question:     msg.Message,
		Outcome:      "ok",
		ContactName:  msg.Name,
		ContactEmail: msg.Email,
	})
	zap.L().Info("contact accepted", zap.String("session", sess.ID))
	return nil
}

// dispatch delivers rec in the background. Delivery errors are logged only.
func (p *Pipeline) dispatch(rec notify.Record) {
	if p.notifier == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := p.notifier.Notify(ctx, rec); err != nil {
			zap.L().Error("notification delivery failed",
				zap.String("record_id", rec.ID),
				zap.String("kind", string(rec.Kind)),
				zap.Error(err),
			)
		}
	}()
}

// Close waits for pending notifications.
func (p *Pipeline) Close() {
	p.wg.Wait()
}
