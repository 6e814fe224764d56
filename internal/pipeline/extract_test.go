package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRationale_WellFormed(t *testing.T) {
	ex := ExtractRationale(bailRationale)

	assert.False(t, ex.Synthetic)
	assert.Contains(t, ex.Analysis, "local commercial")
	assert.Equal(t, "Code de commerce, articles L145-1 et suivants.", ex.Sources)
	assert.Equal(t, "immobilier", ex.Elements.Domain.Name)
	assert.Equal(t, "Règles applicables aux baux commerciaux.", ex.Elements.Domain.Description)
	assert.Equal(t, "Rédaction complète du bail.", ex.Elements.Service.Description)
}

func TestExtractRationale_Fixtures(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		synthetic   bool
		analysis    string
		sources     string
		domainDesc  string
		serviceDesc string
	}{
		{
			name:        "no json",
			raw:         "Analyse du cas.\n\nPas de JSON ici.\n\nSources diverses.",
			synthetic:   true,
			analysis:    "Analyse du cas.",
			sources:     "Sources diverses.",
			domainDesc:  placeholderNoJSON,
			serviceDesc: placeholderNoJSON,
		},
		{
			name:        "invalid json",
			raw:         "Analyse.\n\n{\"domaine\": {\"nom\": \"x\",}\n\nSources.",
			synthetic:   true,
			analysis:    "Analyse.",
			sources:     "Sources.",
			domainDesc:  placeholderBadJSON,
			serviceDesc: placeholderBadJSON,
		},
		{
			name:        "braces in wrong order",
			raw:         "Analyse.\n\n} puis {\n\nSources.",
			synthetic:   true,
			analysis:    "Analyse.",
			sources:     "Sources.",
			domainDesc:  placeholderBadJSON,
			serviceDesc: placeholderBadJSON,
		},
		{
			name:        "prestation not an object",
			raw:         "Analyse.\n\n{\"domaine\": {\"nom\": \"a\", \"description\": \"b\"}, \"prestation\": \"bail\"}\n\nSources.",
			synthetic:   true,
			analysis:    "Analyse.",
			sources:     "Sources.",
			domainDesc:  placeholderBadJSON,
			serviceDesc: placeholderBadJSON,
		},
		{
			name:        "missing descriptions",
			raw:         "Analyse.\n\n{\"domaine\": {\"nom\": \"a\"}, \"prestation\": {\"nom\": \"b\", \"description\": \"  \"}}\n\nSources.",
			synthetic:   true,
			analysis:    "Analyse.",
			sources:     "Sources.",
			domainDesc:  placeholderNoJSON,
			serviceDesc: placeholderNoJSON,
		},
		{
			name:        "one description missing",
			raw:         "Analyse.\n\n{\"domaine\": {\"description\": \"d\"}, \"prestation\": {\"nom\": \"b\"}}\n\nSources.",
			synthetic:   true,
			analysis:    "Analyse.",
			sources:     "Sources.",
			domainDesc:  "d",
			serviceDesc: placeholderNoJSON,
		},
		{
			name:        "crlf line endings",
			raw:         "Analyse du cas.\r\n\r\n{\"domaine\": {\"description\": \"d\"}, \"prestation\": {\"description\": \"p\"}}\r\n\r\nCode civil.\r\n",
			analysis:    "Analyse du cas.",
			sources:     "Code civil.",
			domainDesc:  "d",
			serviceDesc: "p",
		},
		{
			name:        "json with prose in same part",
			raw:         "Analyse.\n\nVoici : {\"domaine\": {\"description\": \"d\"}, \"prestation\": {\"description\": \"p\"}} fin.",
			analysis:    "Analyse.",
			sources:     FallbackSources,
			domainDesc:  "d",
			serviceDesc: "p",
		},
		{
			name:        "json in first part",
			raw:         "{\"domaine\": {\"description\": \"d\"}, \"prestation\": {\"description\": \"p\"}}",
			analysis:    "{\"domaine\": {\"description\": \"d\"}, \"prestation\": {\"description\": \"p\"}}",
			sources:     FallbackSources,
			domainDesc:  "d",
			serviceDesc: "p",
		},
		{
			name:        "empty response",
			raw:         "   ",
			synthetic:   true,
			analysis:    FallbackAnalysis,
			sources:     FallbackSources,
			domainDesc:  placeholderNoJSON,
			serviceDesc: placeholderNoJSON,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := ExtractRationale(tt.raw)
			assert.Equal(t, tt.synthetic, ex.Synthetic)
			assert.Equal(t, tt.analysis, ex.Analysis)
			assert.Equal(t, tt.sources, ex.Sources)
			assert.Equal(t, tt.domainDesc, ex.Elements.Domain.Description)
			assert.Equal(t, tt.serviceDesc, ex.Elements.Service.Description)
		})
	}
}
