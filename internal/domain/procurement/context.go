package procurement

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/scorpius/internal/domain"
	"github.com/kailas-cloud/scorpius/internal/domain/search/filter"
)

// Metadata keys shared by ingestion, filtering and scoring.
const (
	MetaSector      = "secteur"
	MetaProcedure   = "type_ao"
	MetaAmountRange = "fourchette_montant"
	MetaAmount      = "montant"
	MetaDomain      = "domaine_technique"
	MetaOrganisme   = "organisme"
)

// Relevance bonuses added on top of vector similarity.
const (
	BonusSector      = 0.10
	BonusProcedure   = 0.10
	BonusAmountRange = 0.08
	BonusOrganisme   = 0.05
)

// organismeKinds are buyer families detected by substring in organisme names.
var organismeKinds = []string{"région", "département", "ministère", "chu", "université"}

// Context narrows a search to tenders resembling the one being analysed.
// Zero fields impose no constraint; a nil *Context imposes none at all.
type Context struct {
	ProcedureType    ProcedureType
	Sector           Sector
	EstimatedAmount  *int64
	TechnicalDomains []TechnicalDomain
	Organisme        string
	GeographicScope  string
	CriteriaWeights  map[string]int
}

// Validate checks enum values and that criteria weights do not exceed 100%.
func (c *Context) Validate() error {
	if c == nil {
		return nil
	}
	if c.ProcedureType != "" {
		if _, err := ParseProcedureType(string(c.ProcedureType)); err != nil {
			return domain.NewValidationError("context.ao_type", c.ProcedureType, err.Error())
		}
	}
	if c.Sector != "" {
		if _, err := ParseSector(string(c.Sector)); err != nil {
			return domain.NewValidationError("context.sector", c.Sector, err.Error())
		}
	}
	for _, d := range c.TechnicalDomains {
		if _, err := ParseTechnicalDomain(string(d)); err != nil {
			return domain.NewValidationError("context.technical_domains", d, err.Error())
		}
	}
	if c.EstimatedAmount != nil && *c.EstimatedAmount < 0 {
		return domain.NewValidationError("context.estimated_amount", *c.EstimatedAmount, "must not be negative")
	}
	total := 0
	for k, w := range c.CriteriaWeights {
		if w < 0 {
			return domain.NewValidationError("context.criteria_weights", k, "weight must not be negative")
		}
		total += w
	}
	if total > 100 {
		return domain.NewValidationError("context.criteria_weights", total, "total weight cannot exceed 100")
	}
	return nil
}

// AmountRange returns the bucket of the estimated amount.
func (c *Context) AmountRange() string {
	if c == nil || c.EstimatedAmount == nil {
		return AmountUnspecified
	}
	return AmountRange(*c.EstimatedAmount)
}

// EnrichQuery appends the context as keywords so the query vector lands
// closer to documents of the same kind of tender.
func (c *Context) EnrichQuery(query string) string {
	if c == nil {
		return query
	}
	parts := []string{query}
	if c.ProcedureType != "" {
		parts = append(parts, "appel offres "+string(c.ProcedureType))
	}
	if c.Sector != "" {
		parts = append(parts, "secteur "+string(c.Sector))
	}
	if c.EstimatedAmount != nil {
		parts = append(parts, "montant "+c.AmountRange())
	}
	if len(c.TechnicalDomains) > 0 {
		names := make([]string, len(c.TechnicalDomains))
		for i, d := range c.TechnicalDomains {
			names[i] = string(d)
		}
		parts = append(parts, "technologies "+strings.Join(names, " "))
	}
	if c.Organisme != "" {
		parts = append(parts, "organisme "+c.Organisme)
	}
	return strings.Join(parts, " - ")
}

// SearchKeywords lists the context values worth matching in document text.
func (c *Context) SearchKeywords() []string {
	if c == nil {
		return nil
	}
	var kw []string
	if c.ProcedureType != "" {
		kw = append(kw, string(c.ProcedureType))
	}
	if c.Sector != "" {
		kw = append(kw, string(c.Sector))
	}
	for _, d := range c.TechnicalDomains {
		kw = append(kw, string(d))
	}
	if c.EstimatedAmount != nil {
		kw = append(kw, c.AmountRange())
	}
	if c.Organisme != "" {
		kw = append(kw, c.Organisme)
	}
	if c.GeographicScope != "" {
		kw = append(kw, c.GeographicScope)
	}
	return kw
}

// Predicate translates the context into a metadata filter.
// Technical domains match when the document carries any of them.
func (c *Context) Predicate() filter.Expression {
	if c == nil {
		return filter.Expression{}
	}
	var must []filter.Condition
	if c.Sector != "" {
		must = append(must, mustMatch(MetaSector, string(c.Sector)))
	}
	if c.ProcedureType != "" {
		must = append(must, mustMatch(MetaProcedure, string(c.ProcedureType)))
	}
	if c.EstimatedAmount != nil {
		must = append(must, mustMatch(MetaAmountRange, c.AmountRange()))
	}
	if len(c.TechnicalDomains) > 0 {
		values := make([]string, len(c.TechnicalDomains))
		for i, d := range c.TechnicalDomains {
			values[i] = string(d)
		}
		if cond, err := filter.NewAnyOf(MetaDomain, values); err == nil {
			must = append(must, cond)
		}
	}
	return filter.All(must...)
}

// mustMatch builds a match on non-empty values produced above.
func mustMatch(key, value string) filter.Condition {
	cond, _ := filter.NewMatch(key, value)
	return cond
}

// RelevanceBonus scores how closely document metadata fits the context.
func (c *Context) RelevanceBonus(meta map[string]any) float64 {
	if c == nil {
		return 0
	}
	bonus := 0.0
	if c.Sector != "" && metaString(meta, MetaSector) == string(c.Sector) {
		bonus += BonusSector
	}
	if c.ProcedureType != "" && metaString(meta, MetaProcedure) == string(c.ProcedureType) {
		bonus += BonusProcedure
	}
	if c.EstimatedAmount != nil {
		if r := metaString(meta, MetaAmountRange); r != "" && r == c.AmountRange() {
			bonus += BonusAmountRange
		}
	}
	if c.Organisme != "" {
		if org := metaString(meta, MetaOrganisme); org != "" && sameOrganismeKind(c.Organisme, org) {
			bonus += BonusOrganisme
		}
	}
	return bonus
}

func sameOrganismeKind(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for _, kind := range organismeKinds {
		if strings.Contains(a, kind) && strings.Contains(b, kind) {
			return true
		}
	}
	return false
}

// FormalismLevel estimates how formal the bid must be.
func (c *Context) FormalismLevel() string {
	if c == nil {
		return "Standard"
	}
	switch c.ProcedureType {
	case ProcedureMAPA:
		return "Minimum"
	case ProcedureOuvert, ProcedureRestreint:
		if c.EstimatedAmount != nil && *c.EstimatedAmount > 1_000_000 {
			return "Maximum"
		}
		return "Standard"
	default:
		return "Maximum"
	}
}

// PriceSensitivity is the price criterion weight in [0, 1]; 0.5 when unknown.
func (c *Context) PriceSensitivity() float64 {
	if c == nil || len(c.CriteriaWeights) == 0 {
		return 0.5
	}
	w, ok := c.CriteriaWeights["prix"]
	if !ok {
		return 0.5
	}
	return float64(w) / 100
}

func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
