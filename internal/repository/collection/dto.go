package collection

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/scorpius/internal/domain/collection"
)

// collectionToHash converts a domain Collection to a map for HSET.
func collectionToHash(col collection.Collection) map[string]string {
	return map[string]string{
		"name":        col.Name(),
		"description": col.Description(),
		"model":       col.Model(),
		"vector_dim":  strconv.Itoa(col.VectorDim()),
		"created_at":  strconv.FormatInt(col.CreatedAt(), 10),
	}
}

// collectionFromHash hydrates a domain Collection from an HGETALL result map.
func collectionFromHash(m map[string]string, defaultVectorDim int) (collection.Collection, error) {
	name := m["name"]
	if name == "" {
		return collection.Collection{}, fmt.Errorf("collection hash without name")
	}

	var createdAt int64
	if s := m["created_at"]; s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return collection.Collection{}, fmt.Errorf("invalid created_at: %w", err)
		}
		createdAt = v
	}

	vectorDim := defaultVectorDim
	if dimStr := m["vector_dim"]; dimStr != "" {
		if parsed, err := strconv.Atoi(dimStr); err == nil {
			vectorDim = parsed
		}
	}

	description := m["description"]
	if description == "" {
		description = collection.DescriptionOf(name)
	}
	return collection.Reconstruct(name, description, m["model"], vectorDim, createdAt), nil
}
