package pipeline

import (
	"fmt"
	"math"
	"strconv"

	"github.com/viewavocats/estimia/internal/catalog"
	"github.com/viewavocats/estimia/internal/model"
)

// DefaultUrgencyMultiplier is applied to the base price of urgent requests.
const DefaultUrgencyMultiplier = 1.5

// Price computes the price of a catalog service. It makes no external call
// and fails only with a *CatalogLookupError. Urgent prices are rounded half
// to even. A non-positive multiplier selects DefaultUrgencyMultiplier.
func Price(cat *catalog.Catalog, domainID, serviceID string, urgency model.Urgency, multiplier float64) (model.PriceBreakdown, error) {
	if multiplier <= 0 {
		multiplier = DefaultUrgencyMultiplier
	}

	domain, ok := cat.Domain(domainID)
	if !ok {
		return model.PriceBreakdown{}, &CatalogLookupError{
			Cause:     ReasonUnknownDomain,
			DomainID:  domainID,
			ServiceID: serviceID,
		}
	}
	service, ok := cat.Service(domainID, serviceID)
	if !ok {
		return model.PriceBreakdown{}, &CatalogLookupError{
			Cause:     ReasonUnknownService,
			DomainID:  domainID,
			ServiceID: serviceID,
			Available: domain.ServiceIDs(),
		}
	}
	if service.BasePrice <= 0 {
		return model.PriceBreakdown{}, &CatalogLookupError{
			Cause:     ReasonMissingPrice,
			DomainID:  domainID,
			ServiceID: serviceID,
		}
	}

	pb := model.PriceBreakdown{
		DomainLabel:  domain.Label,
		ServiceLabel: service.Label,
		BasePrice:    service.BasePrice,
		Multiplier:   1,
		FinalPrice:   service.BasePrice,
		Steps: []string{
			fmt.Sprintf("Forfait pour la prestation '%s': %d €", service.Label, service.BasePrice),
		},
	}

	if urgency == model.UrgencyUrgent {
		pb.UrgencyApplied = true
		pb.Multiplier = multiplier
		pb.FinalPrice = int(math.RoundToEven(float64(service.BasePrice) * multiplier))
		pb.Steps = append(pb.Steps,
			fmt.Sprintf("Facteur d'urgence appliqué: ×%s", strconv.FormatFloat(multiplier, 'f', -1, 64)),
			fmt.Sprintf("Forfait après application du facteur d'urgence: %d €", pb.FinalPrice),
		)
	}

	return pb, nil
}
