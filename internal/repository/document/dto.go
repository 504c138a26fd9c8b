package document

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	domcol "github.com/kailas-cloud/scorpius/internal/domain/collection"
	domdoc "github.com/kailas-cloud/scorpius/internal/domain/document"
	"github.com/kailas-cloud/scorpius/internal/repository/collection"
)

// buildHashFields converts a domain Document into a flat map[string]string for HSET.
// The full metadata travels as JSON; indexed keys are also flattened so the
// FT index can filter on them.
func buildHashFields(doc *domdoc.Document) (map[string]string, error) {
	meta := doc.Metadata()
	m := make(map[string]string, 3+len(meta))
	m[collection.FieldContent] = doc.Content()
	m[collection.FieldVector] = vectorToBytes(doc.Vector())

	if len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		m[collection.FieldMetadata] = string(data)
	}

	for _, f := range domcol.Fields() {
		if s, ok := f.Encode(meta[f.Name()]); ok {
			m[f.Name()] = s
		}
	}
	return m, nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
