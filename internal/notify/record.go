// Package notify delivers a record of every estimate submission and contact
// message to the configured sinks: the application log, an SMTP mailbox and a
// SQLite journal.
package notify

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes estimate submissions from contact messages.
type Kind string

const (
	KindEstimate Kind = "estimate"
	KindContact  Kind = "contact"
)

// Record is the content handed to sinks. Price fields are set only when a
// price was computed.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`

	ClientType string `json:"client_type,omitempty"`
	Urgency    string `json:"urgency,omitempty"`
	Question   string `json:"question"`

	Priced       bool   `json:"priced"`
	Price        int    `json:"price,omitempty"`
	DomainLabel  string `json:"domain_label,omitempty"`
	ServiceLabel string `json:"service_label,omitempty"`

	// Outcome is "ok" or the failure kind of the run.
	Outcome string `json:"outcome"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// Subject returns the mail subject line.
func (r Record) Subject() string {
	if r.Kind == KindContact {
		return "Nouveau message de contact sur Estim'IA"
	}
	return "Nouvelle question posée sur Estim'IA"
}

// Body renders the plain-text message.
func (r Record) Body() string {
	var b strings.Builder
	if r.Kind == KindContact {
		b.WriteString("Nouveau message de contact :\n")
		fmt.Fprintf(&b, "Nom : %s\n", r.ContactName)
		fmt.Fprintf(&b, "Email : %s\n", r.ContactEmail)
		fmt.Fprintf(&b, "Message : %s\n", r.Question)
		return b.String()
	}

	b.WriteString("Nouvelle question posée :\n")
	fmt.Fprintf(&b, "Client : %s\n", r.ClientType)
	fmt.Fprintf(&b, "Urgence : %s\n", r.Urgency)
	fmt.Fprintf(&b, "Question : %s\n", r.Question)
	if r.Priced {
		fmt.Fprintf(&b, "Estimation : %d€ HT\n", r.Price)
		fmt.Fprintf(&b, "Domaine : %s\n", r.DomainLabel)
		fmt.Fprintf(&b, "Prestation : %s\n", r.ServiceLabel)
	}
	return b.String()
}
