package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/integrators"
	"github.com/san-kum/pidloop/internal/plant"
)

type Registry struct {
	plants      map[string]func() dynamo.Plant
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		plants:      make(map[string]func() dynamo.Plant),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.plants["thermal"] = func() dynamo.Plant { return plant.NewThermal() }
	r.plants["motor"] = func() dynamo.Plant { return plant.NewMotor() }
	r.plants["servo"] = func() dynamo.Plant { return plant.NewServo() }

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }

	return r
}

func (r *Registry) GetPlant(name string) (dynamo.Plant, error) {
	fn, ok := r.plants[name]
	if !ok {
		return nil, fmt.Errorf("unknown plant: %s (available: %v)", name, r.ListPlants())
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListPlants() []string {
	names := make([]string, 0, len(r.plants))
	for name := range r.plants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
