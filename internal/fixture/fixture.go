// Package fixture reads and writes offline weather fixtures: a set of fields
// with a fixed weather series each. Fixtures drive local runs without the
// network and the model checks in cmd/validate.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// Fixture is the on-disk fixture document.
type Fixture struct {
	GeneratedFor string                          `json:"generated_for"` // local date splitting history from forecast
	Seed         uint64                          `json:"seed"`
	Fields       []domain.Field                  `json:"fields"`
	Weather      map[string]domain.WeatherSeries `json:"weather"`
}

// Load reads a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	if fx.Weather == nil {
		fx.Weather = map[string]domain.WeatherSeries{}
	}
	return &fx, nil
}

// Save writes the fixture as indented JSON, creating parent directories.
func (fx *Fixture) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// FieldIDs returns the fixture's field IDs in sorted order.
func (fx *Fixture) FieldIDs() []string {
	ids := make([]string, 0, len(fx.Fields))
	for _, f := range fx.Fields {
		ids = append(ids, f.ID)
	}
	sort.Strings(ids)
	return ids
}

// Provider serves a fixture's weather as a WeatherSeriesProvider.
type Provider struct {
	weather map[string]domain.WeatherSeries
}

// NewProvider creates a Provider over fx.
func NewProvider(fx *Fixture) *Provider {
	return &Provider{weather: fx.Weather}
}

// Series returns the fixture series for field, or ErrNotFound.
func (p *Provider) Series(_ context.Context, field domain.Field) (domain.WeatherSeries, error) {
	s, ok := p.weather[field.ID]
	if !ok {
		return domain.WeatherSeries{}, fmt.Errorf("weather for %s: %w", field.ID, domain.ErrNotFound)
	}
	return s, nil
}
