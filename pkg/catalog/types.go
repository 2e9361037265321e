package catalog

import (
	"time"

	"github.com/leadforge/leadforge/pkg/engine"
)

// Template is a reusable campaign definition loaded from a YAML file. A
// template carries the drip sequence only; campaigns instantiated from it get
// their own ID, status, and memberships.
type Template struct {
	// Name identifies the template and becomes the campaign name on seed.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Description is operator-facing documentation for the template.
	Description string `yaml:"description" json:"description,omitempty"`

	// Sequence is the ordered drip sequence the campaign will run.
	Sequence []engine.CampaignStep `yaml:"sequence" json:"sequence" validate:"required,min=1,dive"`

	// Source is the file path the template was loaded from.
	Source string `yaml:"-" json:"source,omitempty"`

	// LoadedAt is when the template was read from disk.
	LoadedAt time.Time `yaml:"-" json:"loaded_at"`
}
