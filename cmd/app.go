package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/viewavocats/estimia/internal/antispam"
	"github.com/viewavocats/estimia/internal/catalog"
	"github.com/viewavocats/estimia/internal/config"
	"github.com/viewavocats/estimia/internal/notify"
	"github.com/viewavocats/estimia/internal/oracle"
	"github.com/viewavocats/estimia/internal/pipeline"
	"github.com/viewavocats/estimia/internal/ratelimit"
	"github.com/viewavocats/estimia/internal/resilience"
	"github.com/viewavocats/estimia/internal/session"
)

// appEnv holds everything the serve and estimate commands need.
type appEnv struct {
	Catalog  *catalog.Catalog
	Pipeline *pipeline.Pipeline
	Sessions *session.Store
	Journal  *notify.Journal // may be nil
}

// Close flushes pending notifications and releases the journal.
func (e *appEnv) Close() {
	if e.Pipeline != nil {
		e.Pipeline.Close()
	}
	if e.Journal != nil {
		_ = e.Journal.Close()
	}
}

// initApp validates the configuration for mode and wires the pipeline.
// Callers should defer env.Close().
func initApp(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	cat, err := catalog.Load(c.Catalog.Path)
	if err != nil {
		return nil, err
	}

	o, err := oracle.New(ctx, c)
	if err != nil {
		return nil, err
	}

	system, err := oracle.LoadSystemPrompt(c.Oracle.SystemPromptFile, pipeline.DefaultSystemPrompt)
	if err != nil {
		return nil, err
	}

	notifier, journal, err := buildNotifier(ctx, c.Notify)
	if err != nil {
		return nil, err
	}

	breaker := resilience.NewBreaker(resilience.FromBreakerConfig("oracle", c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs))
	gate := ratelimit.NewGate(ratelimit.Config{
		MaxGlobalRequests:  c.Limits.MaxGlobalRequests,
		ResetInterval:      c.Limits.ResetInterval(),
		MaxSessionRequests: c.Limits.MaxSessionRequests,
		SessionWindow:      c.Limits.SessionWindow(),
	})
	guard := antispam.NewGuard(c.Spam.MinSubmitDelay())

	p := pipeline.New(cat, o, breaker, gate, guard, notifier, pipeline.OptionsFromConfig(c, system))

	zap.L().Info("pipeline ready",
		zap.Int("domains", len(cat.Domains())),
		zap.Int("services", cat.Len()),
		zap.Int("max_global_requests", c.Limits.MaxGlobalRequests),
		zap.Int("max_session_requests", c.Limits.MaxSessionRequests),
	)

	return &appEnv{
		Catalog:  cat,
		Pipeline: p,
		Sessions: session.NewStore(c.Session.MaxSessions, c.Session.TTL(), guard),
		Journal:  journal,
	}, nil
}

// buildNotifier assembles the configured sinks. The log sink is always
// present; mail and journal are added when configured.
func buildNotifier(ctx context.Context, nc config.NotifyConfig) (notify.Notifier, *notify.Journal, error) {
	sinks := notify.Multi{notify.Log{}}

	if nc.Mail.Host != "" {
		sinks = append(sinks, notify.NewMailer(notify.MailConfig{
			Host:     nc.Mail.Host,
			Port:     nc.Mail.Port,
			Username: nc.Mail.Username,
			Password: nc.Mail.Password,
			From:     nc.Mail.From,
			To:       nc.Mail.To,
			Retry:    resilience.FromRetryConfig(nc.Mail.MaxAttempts, nc.Mail.InitialBackoffMs),
		}))
		zap.L().Info("mail notifications enabled", zap.String("host", nc.Mail.Host))
	}

	var journal *notify.Journal
	if nc.JournalPath != "" {
		j, err := openJournal(ctx, nc.JournalPath)
		if err != nil {
			return nil, nil, err
		}
		journal = j
		sinks = append(sinks, j)
		zap.L().Info("notification journal enabled", zap.String("path", nc.JournalPath))
	}

	return sinks, journal, nil
}

func openJournal(ctx context.Context, path string) (*notify.Journal, error) {
	j, err := notify.OpenJournal(path)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, eris.Wrap(err, "migrate journal")
	}
	return j, nil
}
