// internal/niimbot/model.go
package niimbot

import (
	"fmt"
	"sort"
	"strings"
)

// Model is the policy profile of one printer model.
type Model struct {
	Name       string `json:"name"`
	MaxWidth   int    `json:"max_width"`
	MaxDensity int    `json:"max_density"`
}

var models = map[string]Model{
	"b1":   {Name: "b1", MaxWidth: 384, MaxDensity: 5},
	"b18":  {Name: "b18", MaxWidth: 384, MaxDensity: 3},
	"b21":  {Name: "b21", MaxWidth: 384, MaxDensity: 5},
	"b31":  {Name: "b31", MaxWidth: 384, MaxDensity: 5},
	"d11":  {Name: "d11", MaxWidth: 96, MaxDensity: 3},
	"d110": {Name: "d110", MaxWidth: 96, MaxDensity: 3},
}

// LookupModel finds a model by name, case-insensitively.
func LookupModel(name string) (Model, error) {
	m, ok := models[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(models))
		for _, m := range Models() {
			names = append(names, m.Name)
		}
		return Model{}, &ConfigurationError{
			Field:  "model",
			Reason: fmt.Sprintf("unknown model %q (supported: %s)", name, strings.Join(names, ", ")),
		}
	}
	return m, nil
}

// Models returns all supported models sorted by name.
func Models() []Model {
	out := make([]Model, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ClampDensity caps density at the model limit and reports whether it changed.
func (m Model) ClampDensity(density int) (int, bool) {
	if density > m.MaxDensity {
		return m.MaxDensity, true
	}
	return density, false
}

// FitWidth returns the dimensions after a uniform downscale to MaxWidth.
// Images already narrow enough are returned unchanged with scaled=false.
func (m Model) FitWidth(width, height int) (w, h int, scaled bool) {
	if width <= m.MaxWidth || width == 0 {
		return width, height, false
	}
	h = height * m.MaxWidth / width
	if h < 1 {
		h = 1
	}
	return m.MaxWidth, h, true
}
