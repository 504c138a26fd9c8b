package collection

import (
	"fmt"

	"github.com/kailas-cloud/scorpius/internal/db"
	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
	"github.com/kailas-cloud/scorpius/internal/domain/collection/field"
)

// Document hash layout shared with the document and search repositories.
const (
	FieldContent  = "content"
	FieldVector   = "vector"
	FieldMetadata = "metadata"

	TagSeparator = field.TagSeparator
)

// buildIndex creates an HNSW/COSINE index over the collection's hashes.
// Tag fields split on TagSeparator so values may contain commas.
func buildIndex(col domcol.Collection, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(IndexName(col.Name())).Prefix(Prefix(col.Name()))

	for _, f := range col.Fields() {
		switch f.FieldType() {
		case field.Tag:
			b.MultiTag(f.Name(), TagSeparator)
		case field.Numeric:
			b.Numeric(f.Name())
		default:
			return nil, fmt.Errorf("unknown field type: %s", f.FieldType())
		}
	}

	b.Text(FieldContent)
	b.VectorHNSW(FieldVector, col.VectorDim(), db.DistanceCosine, hnsw.M, hnsw.EFConstruct)
	return b.Build()
}
