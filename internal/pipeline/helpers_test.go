package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/viewavocats/estimia/internal/catalog"
	"github.com/viewavocats/estimia/internal/notify"
	"github.com/viewavocats/estimia/internal/oracle"
)

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func stage(name string) any {
	return mock.MatchedBy(func(r oracle.Request) bool { return r.Stage == name })
}

// oracleFunc adapts a function to oracle.Oracle.
type oracleFunc func(ctx context.Context, req oracle.Request) (string, error)

func (f oracleFunc) Complete(ctx context.Context, req oracle.Request) (string, error) {
	return f(ctx, req)
}

// recordingNotifier keeps every record it receives.
type recordingNotifier struct {
	mu      sync.Mutex
	records []notify.Record
}

func (r *recordingNotifier) Notify(_ context.Context, rec notify.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingNotifier) all() []notify.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Record(nil), r.records...)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Domain{
		{
			ID:    "droit_immobilier_commercial",
			Label: "Droit immobilier et commercial",
			Services: []catalog.Service{
				{ID: "redaction_bail_commercial", Label: "Rédaction de bail commercial", BasePrice: 1500, Description: "Préparation d'un bail commercial."},
				{ID: "redaction_bail_commercial_derogatoire", Label: "Rédaction de bail commercial dérogatoire", BasePrice: 1000, Description: "Bail de courte durée."},
			},
		},
		{
			ID:    "droit_civil_contrats",
			Label: "Droit civil et contrats",
			Services: []catalog.Service{
				{ID: "consultation_initiale", Label: "Consultation initiale", BasePrice: 200, Description: "Premier rendez-vous."},
			},
		},
		{
			ID:    "arrondis",
			Label: "Arrondis",
			Services: []catalog.Service{
				{ID: "impair_bas", Label: "Impair bas", BasePrice: 1001},
				{ID: "impair_haut", Label: "Impair haut", BasePrice: 1003},
				{ID: "sans_prix", Label: "Sans prix"},
			},
		},
	})
	require.NoError(t, err)
	return cat
}

const bailClassification = "```json\n" + `{
    "est_juridique": true,
    "domaine": "droit_immobilier_commercial",
    "prestation": "redaction_bail_commercial",
    "explication": "Rédaction d'un bail pour un local commercial.",
    "indice_confiance": 0.92
}` + "\n```"

const bailRationale = `Le client souhaite louer un local commercial et a besoin d'un bail conforme au statut des baux commerciaux.

{"domaine": {"nom": "immobilier", "description": "Règles applicables aux baux commerciaux."}, "prestation": {"nom": "bail", "description": "Rédaction complète du bail."}}

Code de commerce, articles L145-1 et suivants.`
