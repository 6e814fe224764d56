package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewavocats/estimia/internal/catalog"
	"github.com/viewavocats/estimia/internal/model"
)

func TestPrice_Normal(t *testing.T) {
	pb, err := Price(testCatalog(t), "droit_immobilier_commercial", "redaction_bail_commercial", model.UrgencyNormal, 1.5)
	require.NoError(t, err)

	assert.Equal(t, "Droit immobilier et commercial", pb.DomainLabel)
	assert.Equal(t, "Rédaction de bail commercial", pb.ServiceLabel)
	assert.Equal(t, 1500, pb.BasePrice)
	assert.Equal(t, 1500, pb.FinalPrice)
	assert.False(t, pb.UrgencyApplied)
	assert.InDelta(t, 1.0, pb.Multiplier, 0.0001)
	assert.Equal(t, []string{"Forfait pour la prestation 'Rédaction de bail commercial': 1500 €"}, pb.Steps)
}

func TestPrice_Urgent(t *testing.T) {
	pb, err := Price(testCatalog(t), "droit_immobilier_commercial", "redaction_bail_commercial", model.UrgencyUrgent, 1.5)
	require.NoError(t, err)

	assert.True(t, pb.UrgencyApplied)
	assert.InDelta(t, 1.5, pb.Multiplier, 0.0001)
	assert.Equal(t, 2250, pb.FinalPrice)
	require.Len(t, pb.Steps, 3)
	assert.Contains(t, pb.Steps[1], "×1.5")
	assert.Contains(t, pb.Steps[2], "2250")
}

func TestPrice_RoundsHalfToEven(t *testing.T) {
	cat := testCatalog(t)

	pb, err := Price(cat, "arrondis", "impair_bas", model.UrgencyUrgent, 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1502, pb.FinalPrice) // 1501.5

	pb, err = Price(cat, "arrondis", "impair_haut", model.UrgencyUrgent, 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1504, pb.FinalPrice) // 1504.5
}

func TestPrice_DefaultMultiplier(t *testing.T) {
	pb, err := Price(testCatalog(t), "droit_immobilier_commercial", "redaction_bail_commercial_derogatoire", model.UrgencyUrgent, 0)
	require.NoError(t, err)
	assert.Equal(t, 1500, pb.FinalPrice)
	assert.Contains(t, pb.Steps[1], "×1.5")
}

func TestPrice_CustomMultiplier(t *testing.T) {
	pb, err := Price(testCatalog(t), "droit_immobilier_commercial", "redaction_bail_commercial", model.UrgencyUrgent, 2)
	require.NoError(t, err)
	assert.Equal(t, 3000, pb.FinalPrice)
	assert.Contains(t, pb.Steps[1], "×2")
}

func TestPrice_LookupErrors(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name      string
		domain    string
		service   string
		reason    string
		available []string
	}{
		{"unknown domain", "inconnu", "inconnu", ReasonUnknownDomain, nil},
		{"unknown service", "droit_immobilier_commercial", "inconnu", ReasonUnknownService,
			[]string{"redaction_bail_commercial", "redaction_bail_commercial_derogatoire"}},
		{"service from another domain", "droit_civil_contrats", "redaction_bail_commercial", ReasonUnknownService,
			[]string{"consultation_initiale"}},
		{"missing price", "arrondis", "sans_prix", ReasonMissingPrice, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, u := range []model.Urgency{model.UrgencyNormal, model.UrgencyUrgent} {
				_, err := Price(cat, tt.domain, tt.service, u, 1.5)
				var le *CatalogLookupError
				require.True(t, errors.As(err, &le), "got %v", err)
				assert.Equal(t, tt.reason, le.Reason())
				assert.Equal(t, tt.available, le.Available)
				assert.Equal(t, PolicyRecoverable, le.Policy())
			}
		})
	}
}

func TestPrice_EveryDefaultCatalogPair(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	for _, d := range cat.Domains() {
		for _, s := range d.Services {
			normal, err := Price(cat, d.ID, s.ID, model.UrgencyNormal, 1.5)
			if s.BasePrice <= 0 {
				var le *CatalogLookupError
				require.ErrorAs(t, err, &le)
				assert.Equal(t, ReasonMissingPrice, le.Cause)
				continue
			}
			require.NoError(t, err, "%s/%s", d.ID, s.ID)
			assert.Equal(t, s.BasePrice, normal.FinalPrice, "%s/%s", d.ID, s.ID)

			urgent, err := Price(cat, d.ID, s.ID, model.UrgencyUrgent, 1.5)
			require.NoError(t, err)
			assert.Equal(t, int(math.RoundToEven(float64(s.BasePrice)*1.5)), urgent.FinalPrice, "%s/%s", d.ID, s.ID)
		}
	}
}
