package model

import (
	"strings"
	"time"
)

// Urgency is the client's declared urgency for a request.
type Urgency string

const (
	UrgencyNormal Urgency = "Normal"
	UrgencyUrgent Urgency = "Urgent"
)

// ParseUrgency maps user input to an Urgency. Anything other than a
// case-insensitive "urgent" is treated as Normal.
func ParseUrgency(s string) Urgency {
	if strings.EqualFold(strings.TrimSpace(s), string(UrgencyUrgent)) {
		return UrgencyUrgent
	}
	return UrgencyNormal
}

// Client type descriptors offered by the estimate form.
const (
	ClientIndividual = "Particulier"
	ClientBusiness   = "Entreprise"
)

// ClassificationRequest is a single client submission. It is consumed by one
// pipeline run.
type ClassificationRequest struct {
	Description string  `json:"description"`
	ClientType  string  `json:"client_type"`
	Urgency     Urgency `json:"urgency"`
}

// ClassificationResult is the oracle's classification, verified against the
// catalog. Domain and Service are kept even when they are not catalog members;
// LegallyRelevant is then false.
type ClassificationResult struct {
	DomainID        string  `json:"domain_id"`
	ServiceID       string  `json:"service_id"`
	Confidence      float64 `json:"confidence"`
	LegallyRelevant bool    `json:"is_legally_relevant"`
	Explanation     string  `json:"explanation,omitempty"`
}

// PriceBreakdown is the deterministic price for a catalog service.
type PriceBreakdown struct {
	DomainLabel    string   `json:"domain_label"`
	ServiceLabel   string   `json:"service_label"`
	BasePrice      int      `json:"base_price"`
	UrgencyApplied bool     `json:"urgency_multiplier_applied"`
	Multiplier     float64  `json:"multiplier_value"`
	FinalPrice     int      `json:"final_price"`
	Steps          []string `json:"steps"`
}

// Element is a named, described item of the rationale's structured part.
type Element struct {
	Name        string `json:"nom"`
	Description string `json:"description"`
}

// StructuredElements is the JSON fragment of the rationale. Names are always
// the catalog's canonical labels.
type StructuredElements struct {
	Domain  Element `json:"domaine"`
	Service Element `json:"prestation"`
}

// RationaleResult is the free-text explanation of a classification.
// Synthetic is set when StructuredElements were built from catalog defaults
// instead of the oracle's response.
type RationaleResult struct {
	Analysis  string             `json:"analysis"`
	Elements  StructuredElements `json:"structured_elements"`
	Sources   string             `json:"sources"`
	Synthetic bool               `json:"synthetic"`
}

// Advisory flags a caveat the presentation layer should surface.
type Advisory string

const (
	AdvisoryLowConfidence     Advisory = "low_confidence"
	AdvisoryNotLegal          Advisory = "not_legal"
	AdvisorySyntheticElements Advisory = "synthetic_elements"
)

// Estimate is the assembled result of a successful pipeline run.
type Estimate struct {
	ID                string                `json:"id"`
	Request           ClassificationRequest `json:"request"`
	Classification    ClassificationResult  `json:"classification"`
	Price             PriceBreakdown        `json:"price"`
	Rationale         RationaleResult       `json:"rationale"`
	Advisories        []Advisory            `json:"advisories,omitempty"`
	ConsultationPrice int                   `json:"consultation_price,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

// HasAdvisory reports whether the estimate carries the given advisory.
func (e *Estimate) HasAdvisory(a Advisory) bool {
	for _, x := range e.Advisories {
		if x == a {
			return true
		}
	}
	return false
}
