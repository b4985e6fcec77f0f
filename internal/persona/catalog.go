package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/voicecoach/domain/entities"
)

//go:embed personas.yaml
var catalogYAML []byte

// ErrUnknownPersona is returned when an id is not in the catalog
var ErrUnknownPersona = errors.New("unknown persona")

type catalogFile struct {
	Default  string             `yaml:"default"`
	Personas []entities.Persona `yaml:"personas" validate:"required,min=1,dive"`
}

// Catalog is the fixed, ordered set of selectable personas
type Catalog struct {
	defaultID string
	personas  []entities.Persona
	byID      map[string]int
}

var (
	builtinOnce sync.Once
	builtin     *Catalog
	builtinErr  error
)

// Builtin returns the catalog compiled into the binary
func Builtin() (*Catalog, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = Parse(catalogYAML)
	})
	return builtin, builtinErr
}

// Parse loads and validates a catalog document
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse persona catalog: %w", err)
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid persona catalog: %w", err)
	}

	c := &Catalog{
		defaultID: file.Default,
		personas:  make([]entities.Persona, 0, len(file.Personas)),
		byID:      make(map[string]int, len(file.Personas)),
	}
	for _, p := range file.Personas {
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("invalid persona catalog: duplicate id %q", p.ID)
		}
		p.Prompt = strings.TrimSpace(p.Prompt)
		c.byID[p.ID] = len(c.personas)
		c.personas = append(c.personas, p)
	}

	if c.defaultID == "" {
		c.defaultID = c.personas[0].ID
	}
	if _, ok := c.byID[c.defaultID]; !ok {
		return nil, fmt.Errorf("invalid persona catalog: default %q: %w", c.defaultID, ErrUnknownPersona)
	}
	return c, nil
}

// All returns the personas in catalog order
func (c *Catalog) All() []entities.Persona {
	out := make([]entities.Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

func (c *Catalog) Get(id string) (entities.Persona, error) {
	i, ok := c.byID[id]
	if !ok {
		return entities.Persona{}, fmt.Errorf("%w: %s", ErrUnknownPersona, id)
	}
	return c.personas[i], nil
}

func (c *Catalog) Default() entities.Persona {
	return c.personas[c.byID[c.defaultID]]
}
