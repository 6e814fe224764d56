package oracle

import (
	"context"
	"strings"

	"github.com/viewavocats/estimia/pkg/anthropic"
)

// Anthropic completes requests with the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic oracle for model.
func NewAnthropic(client anthropic.Client, model string) *Anthropic {
	return &Anthropic{client: client, model: model}
}

// Complete implements Oracle.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   int64(req.MaxTokens),
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.User}},
		Temperature: &temp,
	})
	if err != nil {
		return "", markTransient(err, anthropic.StatusCode(err))
	}

	resp.Usage.LogCost(a.model, req.Stage)

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
