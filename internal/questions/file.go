// internal/questions/file.go
package questions

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jason-s-yu/crowdpick/internal/models"
)

// Catalog is the on-disk layout of a question pack.
type Catalog struct {
	Panels    []models.Panel    `json:"panels"`
	Questions []models.Question `json:"questions"`
}

// DecodeCatalog reads a JSON catalog. Questions with an unknown layer are rejected
// because they could never be scored.
func DecodeCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode question catalog: %w", err)
	}
	for _, q := range c.Questions {
		if !q.Layer.Valid() {
			return nil, fmt.Errorf("question %s has unknown layer %q", q.ID, q.Layer)
		}
	}
	return &c, nil
}

// LoadFile reads a catalog from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question file: %w", err)
	}
	defer f.Close()
	return DecodeCatalog(f)
}
