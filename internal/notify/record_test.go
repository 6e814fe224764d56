package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordBody_Estimate(t *testing.T) {
	rec := Record{
		Kind:         KindEstimate,
		ClientType:   "Entreprise",
		Urgency:      "Urgent",
		Question:     "Rédaction d'un bail commercial",
		Priced:       true,
		Price:        2250,
		DomainLabel:  "Droit immobilier commercial",
		ServiceLabel: "Rédaction de bail commercial",
	}

	want := "Nouvelle question posée :\n" +
		"Client : Entreprise\n" +
		"Urgence : Urgent\n" +
		"Question : Rédaction d'un bail commercial\n" +
		"Estimation : 2250€ HT\n" +
		"Domaine : Droit immobilier commercial\n" +
		"Prestation : Rédaction de bail commercial\n"
	assert.Equal(t, want, rec.Body())
	assert.Equal(t, "Nouvelle question posée sur Estim'IA", rec.Subject())
}

func TestRecordBody_EstimateUnpriced(t *testing.T) {
	rec := Record{Kind: KindEstimate, ClientType: "Particulier", Urgency: "Normal", Question: "Bonjour", Outcome: "classification_error"}

	body := rec.Body()
	assert.Contains(t, body, "Question : Bonjour")
	assert.NotContains(t, body, "Estimation")
	assert.NotContains(t, body, "Domaine")
}

func TestRecordBody_Contact(t *testing.T) {
	rec := Record{Kind: KindContact, ContactName: "Jeanne Martin", ContactEmail: "jeanne@example.fr", Question: "Rappelez-moi"}

	assert.Equal(t, "Nouveau message de contact :\nNom : Jeanne Martin\nEmail : jeanne@example.fr\nMessage : Rappelez-moi\n", rec.Body())
	assert.Equal(t, "Nouveau message de contact sur Estim'IA", rec.Subject())
}
