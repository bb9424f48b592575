package gateway

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var ErrUndefinedSystem = errors.New("undefined payment system")

// Registry is the static alias->adapter index built once at startup, plus a
// secondary index from country code to the aliases available there.
type Registry struct {
	systems   map[string]System
	byCountry map[string][]string
}

func NewRegistry(systems ...System) (*Registry, error) {
	r := &Registry{
		systems:   make(map[string]System, len(systems)),
		byCountry: make(map[string][]string),
	}

	for _, system := range systems {
		alias := system.Alias()
		if alias == "" {
			return nil, fmt.Errorf("system %T has empty alias", system)
		}
		if _, ok := r.systems[alias]; ok {
			return nil, fmt.Errorf("duplicate alias[%s]", alias)
		}

		r.systems[alias] = system
		for _, countryCode := range system.CountryCodes() {
			r.byCountry[countryCode] = append(r.byCountry[countryCode], alias)
		}
	}

	return r, nil
}

func (r *Registry) Has(alias string) bool {
	_, ok := r.systems[alias]
	return ok
}

func (r *Registry) Get(alias string) (System, error) {
	system, ok := r.systems[alias]
	if !ok {
		return nil, fmt.Errorf("alias[%s]: %w", alias, ErrUndefinedSystem)
	}

	return system, nil
}

func (r *Registry) ByCountry(countryCode string) []System {
	return lo.FilterMap(r.byCountry[countryCode], func(alias string, _ int) (System, bool) {
		system, ok := r.systems[alias]
		return system, ok
	})
}

func (r *Registry) All() []System {
	return lo.Values(r.systems)
}
