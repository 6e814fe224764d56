package oracle

import (
	"context"
	"strings"

	"github.com/viewavocats/estimia/pkg/gemini"
)

// Gemini completes requests with the Gemini API.
type Gemini struct {
	client gemini.Client
	model  string
}

// NewGemini creates a Gemini oracle for model.
func NewGemini(client gemini.Client, model string) *Gemini {
	return &Gemini{client: client, model: model}
}

// Complete implements Oracle.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	temp := float32(req.Temperature)
	resp, err := g.client.Generate(ctx, gemini.GenerateRequest{
		Model:           g.model,
		System:          req.System,
		Prompt:          req.User,
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	})
	if err != nil {
		return "", markTransient(err, gemini.StatusCode(err))
	}

	resp.Usage.LogUsage(g.model, req.Stage)

	if strings.TrimSpace(resp.Text) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Text, nil
}
