// Package oracle adapts text-completion providers to the single call the
// estimate pipeline makes: a system instruction plus one user prompt in, one
// completion out.
package oracle

import (
	"context"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/viewavocats/estimia/internal/config"
	"github.com/viewavocats/estimia/internal/resilience"
	"github.com/viewavocats/estimia/pkg/anthropic"
	"github.com/viewavocats/estimia/pkg/gemini"
)

// ErrEmptyCompletion is returned when the provider answered without text.
var ErrEmptyCompletion = eris.New("oracle: empty completion")

// Request is one completion request.
type Request struct {
	// Stage labels the request in logs and cost attribution.
	Stage       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Oracle returns a single text completion. Implementations must honour ctx
// cancellation.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New builds the configured provider behind a client-side throttle.
func New(ctx context.Context, cfg *config.Config) (Oracle, error) {
	var o Oracle
	switch cfg.Oracle.Provider {
	case "anthropic", "":
		var opts []option.RequestOption
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		o = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key, opts...), cfg.OracleModel())
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key, cfg.Gemini.BaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "oracle: gemini client")
		}
		o = NewGemini(client, cfg.OracleModel())
	default:
		return nil, eris.Errorf("oracle: unknown provider %q", cfg.Oracle.Provider)
	}

	zap.L().Info("oracle configured",
		zap.String("provider", cfg.Oracle.Provider),
		zap.String("model", cfg.OracleModel()),
		zap.Float64("requests_per_second", cfg.Oracle.RequestsPerSecond),
	)
	return NewThrottled(o, cfg.Oracle.RequestsPerSecond, 1), nil
}

// LoadSystemPrompt returns the contents of path, or fallback when path is
// empty.
func LoadSystemPrompt(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "oracle: read system prompt %s", path)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", eris.Errorf("oracle: system prompt %s is empty", path)
	}
	return prompt, nil
}

// markTransient tags provider errors whose HTTP status is worth retrying, so
// callers that do retry can tell them apart.
func markTransient(err error, status int) error {
	if status != 0 && resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
