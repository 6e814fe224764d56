package pipeline

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/viewavocats/estimia/internal/model"
)

// Fallback texts used when the rationale response is incomplete.
const (
	FallbackAnalysis = "Analyse non disponible."
	FallbackSources  = "Aucune source spécifique mentionnée."

	placeholderNoJSON     = "Information non fournie par l'API"
	placeholderBadJSON    = "Erreur dans l'analyse de la réponse"
	placeholderNoResponse = "Erreur dans l'analyse"
)

// Extraction is the best-effort structure recovered from a rationale
// response. Synthetic is set when any element description did not come from
// the response; element names are left for the caller to fill in.
type Extraction struct {
	Analysis  string
	Elements  model.StructuredElements
	Sources   string
	Synthetic bool
}

// ExtractRationale splits a rationale response into its analysis, JSON
// fragment and sources parts. Parts are separated by blank lines. The JSON
// fragment is taken from the first part holding both braces, between its
// first '{' and last '}'. It never fails: missing parts get fixed fallbacks
// and an unusable fragment yields synthetic elements.
func ExtractRationale(raw string) Extraction {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	parts := strings.Split(strings.TrimSpace(raw), "\n\n")

	ex := Extraction{
		Analysis: FallbackAnalysis,
		Sources:  FallbackSources,
	}
	if a := strings.TrimSpace(parts[0]); a != "" {
		ex.Analysis = a
	}
	if len(parts) > 2 {
		if s := strings.TrimSpace(parts[2]); s != "" {
			ex.Sources = s
		}
	}

	fragment, found := jsonFragment(parts)
	if !found {
		ex.Elements = syntheticElements(placeholderNoJSON)
		ex.Synthetic = true
		return ex
	}
	elements, complete, ok := parseElements(fragment)
	if !ok {
		ex.Elements = syntheticElements(placeholderBadJSON)
		ex.Synthetic = true
		return ex
	}
	ex.Elements = elements
	ex.Synthetic = !complete
	return ex
}

func jsonFragment(parts []string) (string, bool) {
	for _, p := range parts {
		start := strings.Index(p, "{")
		end := strings.LastIndex(p, "}")
		if start >= 0 && end >= 0 {
			if end < start {
				// Both braces present but in the wrong order: still the
				// first candidate part, and it cannot parse.
				return "", true
			}
			return p[start : end+1], true
		}
	}
	return "", false
}

// parseElements decodes the fragment. complete is false when a description
// was missing and replaced by the placeholder.
func parseElements(fragment string) (elements model.StructuredElements, complete, ok bool) {
	if !gjson.Valid(fragment) {
		return model.StructuredElements{}, false, false
	}
	doc := gjson.Parse(fragment)
	domain, service := doc.Get("domaine"), doc.Get("prestation")
	if !domain.IsObject() || !service.IsObject() {
		return model.StructuredElements{}, false, false
	}
	domainDesc, domainOK := describe(domain)
	serviceDesc, serviceOK := describe(service)
	return model.StructuredElements{
		Domain:  model.Element{Name: domain.Get("nom").String(), Description: domainDesc},
		Service: model.Element{Name: service.Get("nom").String(), Description: serviceDesc},
	}, domainOK && serviceOK, true
}

func describe(el gjson.Result) (string, bool) {
	if d := strings.TrimSpace(el.Get("description").String()); d != "" {
		return d, true
	}
	return placeholderNoJSON, false
}

func syntheticElements(description string) model.StructuredElements {
	return model.StructuredElements{
		Domain:  model.Element{Description: description},
		Service: model.Element{Description: description},
	}
}
