// Package shaders embeds the WGSL sources of the simulation stages.
package shaders

import (
	"embed"
	"strings"

	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu"
)

//go:embed *.wgsl
var files embed.FS

// Entry points of the embedded kernels. Software kernels are registered under the same names.
const (
	EntryGravity  = "gravity"
	EntryVerlet   = "verlet"
	EntryDisturb  = "disturb_main"
	EntryDecay    = "decay"
	EntryScatter  = "scatter"
	EntryColorize = "colorize"

	EntryDisplayVertex   = "vs_main"
	EntryDisplayFragment = "fs_main"
)

// Stage names. Each names the file of the stage's WGSL source, e.g. gravity.wgsl.
const (
	Gravity  = "gravity"
	Verlet   = "verlet"
	Disturb  = "disturb"
	Decay    = "decay"
	Scatter  = "scatter"
	Colorize = "colorize"
	Display  = "display"
)

// computeEntries maps each compute stage to the entry point its source declares.
var computeEntries = map[string]string{
	Gravity:  EntryGravity,
	Verlet:   EntryVerlet,
	Disturb:  EntryDisturb,
	Decay:    EntryDecay,
	Scatter:  EntryScatter,
	Colorize: EntryColorize,
}

// ComputeStages returns the names of every compute stage.
func ComputeStages() []string {
	return []string{Gravity, Verlet, Disturb, Decay, Scatter, Colorize}
}

// EntryPoint returns the entry point of a compute stage, or false for an unknown stage.
func EntryPoint(stage string) (string, bool) {
	e, ok := computeEntries[stage]
	return e, ok
}

// includeNames are the shared struct definitions stages pull in with //@oxy:include.
var includeNames = []string{"sim_params", "field_params"}

// Source returns the WGSL source of a stage, e.g. "gravity" for gravity.wgsl.
func Source(name string) string {
	b, err := files.ReadFile(name + ".wgsl")
	if err != nil {
		gpu.Fatalf("shaders.Source", gpu.ErrCreation, "no embedded shader %q", name)
	}
	return string(b)
}

// Includes returns the include registry for the embedded stages.
func Includes() map[string]string {
	reg := make(map[string]string, len(includeNames))
	for _, n := range includeNames {
		reg[n] = strings.TrimSpace(Source(n))
	}
	return reg
}
