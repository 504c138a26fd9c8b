package collection

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/kailas-cloud/scorpius/internal/domain/collection/field"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Default collection names.
const (
	Reglementaire               = "reglementaire"
	HistoriqueAO                = "historique_ao"
	ReferencesClients           = "references_clients"
	TemplatesPerformants        = "templates_performants"
	IntelligenceConcurrentielle = "intelligence_concurrentielle"
)

// Defaults maps the collections created at start-up to their descriptions.
var Defaults = []struct {
	Name        string
	Description string
}{
	{Reglementaire, "Code des marchés publics, CCAG, jurisprudences, normes sectorielles"},
	{HistoriqueAO, "Résultats BOAMP/TED, analyses post-attribution, patterns sectoriels"},
	{ReferencesClients, "Projets détaillés, ROI quantifiés, retours satisfaction"},
	{TemplatesPerformants, "Mémoires techniques gagnants, structures optimales par secteur"},
	{IntelligenceConcurrentielle, "Profils détaillés ESN/consultants, stratégies, grilles prix"},
}

// DescriptionOf returns the description of a default collection, or "".
func DescriptionOf(name string) string {
	for _, d := range Defaults {
		if d.Name == name {
			return d.Description
		}
	}
	return ""
}

var standardFields = []field.Field{
	field.MustNew("secteur", field.Tag),
	field.MustNew("type_ao", field.Tag),
	field.MustNew("fourchette_montant", field.Tag),
	field.MustNew("domaine_technique", field.Tag),
	field.MustNew("organisme", field.Tag),
	field.MustNew("collection", field.Tag),
	field.MustNew("montant", field.Numeric),
	field.MustNew("document_length", field.Numeric),
}

// Fields returns the metadata keys every collection indexes.
func Fields() []field.Field {
	return slices.Clone(standardFields)
}

// Collection is a named partition of the vector store (immutable value object).
type Collection struct {
	name        string
	description string
	model       string
	fields      []field.Field
	vectorDim   int
	createdAt   int64
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

// New validates and creates a Collection indexing the standard fields.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. VectorDim: > 0.
func New(name, description, model string, vectorDim int) (Collection, error) {
	if err := validateName(name); err != nil {
		return Collection{}, err
	}
	if vectorDim <= 0 {
		return Collection{}, fmt.Errorf("vector dimension must be positive")
	}
	if description == "" {
		description = DescriptionOf(name)
	}
	return Collection{
		name:        name,
		description: description,
		model:       model,
		fields:      Fields(),
		vectorDim:   vectorDim,
		createdAt:   time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Collection without validation (storage hydration).
func Reconstruct(name, description, model string, vectorDim int, createdAt int64) Collection {
	return Collection{
		name:        name,
		description: description,
		model:       model,
		fields:      Fields(),
		vectorDim:   vectorDim,
		createdAt:   createdAt,
	}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Description returns the human description.
func (c Collection) Description() string { return c.description }

// Model returns the embedding model the vectors were produced with.
func (c Collection) Model() string { return c.model }

// Fields returns the indexed field definitions.
func (c Collection) Fields() []field.Field { return c.fields }

// VectorDim returns the vector dimension.
func (c Collection) VectorDim() int { return c.vectorDim }

// CreatedAt returns the creation timestamp (unix millis).
func (c Collection) CreatedAt() int64 { return c.createdAt }

// FieldByName looks up a field by name.
func (c Collection) FieldByName(name string) (field.Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}
