package profile

import (
	"time"

	id "datex/pkg/domain"
)

// Bundle is one data category slice of a customer profile as held by a
// providing participant. Data stays schemaless at this layer: the core gates
// release, it does not interpret field contents.
type Bundle struct {
	Category id.DataCategory `json:"category"`
	Data     map[string]any  `json:"data"`
	// Completeness is the provider's quality score for this slice, 0..1.
	Completeness float64   `json:"completeness"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
