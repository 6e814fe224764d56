// Package catalog holds the static table of legal domains and priced
// services. A Catalog is immutable once loaded and safe for concurrent reads.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Service is a priced legal service within a domain. BasePrice is in euros
// excluding tax.
type Service struct {
	ID          string `yaml:"id" json:"id"`
	Label       string `yaml:"label" json:"label"`
	BasePrice   int    `yaml:"base_price" json:"base_price"`
	Description string `yaml:"description" json:"description"`
}

// Domain is a legal domain and its ordered services.
type Domain struct {
	ID       string    `yaml:"id" json:"id"`
	Label    string    `yaml:"label" json:"label"`
	Services []Service `yaml:"services" json:"services"`
}

// Catalog is an ordered domain -> service table.
type Catalog struct {
	domains []Domain
	byID    map[string]int
	svcByID []map[string]int
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file. An empty path loads the embedded
// default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog. Domain ids must be unique, and service ids
// must be unique within their domain. Prices are not validated here: a
// missing price surfaces as a lookup error at pricing time.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Domains []Domain `yaml:"domains"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "catalog: parse")
	}
	return New(doc.Domains)
}

// New builds a catalog from domains in order.
func New(domains []Domain) (*Catalog, error) {
	c := &Catalog{
		domains: make([]Domain, len(domains)),
		byID:    make(map[string]int, len(domains)),
		svcByID: make([]map[string]int, len(domains)),
	}
	for i, d := range domains {
		id := canonical(d.ID)
		if id == "" {
			return nil, eris.Errorf("catalog: domain %d has no id", i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, eris.Errorf("catalog: duplicate domain %q", d.ID)
		}
		d.ID = id
		d.Services = append([]Service(nil), d.Services...)

		idx := make(map[string]int, len(d.Services))
		for j := range d.Services {
			sid := canonical(d.Services[j].ID)
			if sid == "" {
				return nil, eris.Errorf("catalog: service %d in domain %q has no id", j, d.ID)
			}
			if _, dup := idx[sid]; dup {
				return nil, eris.Errorf("catalog: duplicate service %q in domain %q", sid, d.ID)
			}
			d.Services[j].ID = sid
			idx[sid] = j
		}

		c.domains[i] = d
		c.byID[id] = i
		c.svcByID[i] = idx
	}
	return c, nil
}

// canonical normalizes an identifier for lookup. Oracle output and YAML
// files may disagree on Unicode composition for accented ids.
func canonical(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}

// Domains returns the domains in catalog order. The slice must not be
// modified.
func (c *Catalog) Domains() []Domain {
	return c.domains
}

// Domain looks up a domain by id.
func (c *Catalog) Domain(id string) (Domain, bool) {
	i, ok := c.byID[canonical(id)]
	if !ok {
		return Domain{}, false
	}
	return c.domains[i], true
}

// Service looks up a service within a domain.
func (c *Catalog) Service(domainID, serviceID string) (Service, bool) {
	i, ok := c.byID[canonical(domainID)]
	if !ok {
		return Service{}, false
	}
	j, ok := c.svcByID[i][canonical(serviceID)]
	if !ok {
		return Service{}, false
	}
	return c.domains[i].Services[j], true
}

// Contains reports whether serviceID is a service of domainID.
func (c *Catalog) Contains(domainID, serviceID string) bool {
	_, ok := c.Service(domainID, serviceID)
	return ok
}

// ServiceIDs returns the ids of a domain's services in order.
func (d Domain) ServiceIDs() []string {
	ids := make([]string, len(d.Services))
	for i, s := range d.Services {
		ids[i] = s.ID
	}
	return ids
}

// Options renders one "domain: service1, service2" line per domain, used to
// enumerate the valid choices in classification prompts.
func (c *Catalog) Options() []string {
	out := make([]string, len(c.domains))
	for i, d := range c.domains {
		out[i] = fmt.Sprintf("%s: %s", d.ID, strings.Join(d.ServiceIDs(), ", "))
	}
	return out
}

// FindService returns the first service with the given id across all
// domains.
func (c *Catalog) FindService(serviceID string) (Domain, Service, bool) {
	sid := canonical(serviceID)
	for i, d := range c.domains {
		if j, ok := c.svcByID[i][sid]; ok {
			return d, d.Services[j], true
		}
	}
	return Domain{}, Service{}, false
}

// Len returns the number of services across all domains.
func (c *Catalog) Len() int {
	n := 0
	for _, d := range c.domains {
		n += len(d.Services)
	}
	return n
}
