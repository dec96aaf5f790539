package simulation

import (
	"math"
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-gravity/common"
)

// Generator produces the initial positions and velocities of n particles.
type Generator func(n int) (pos, vel []common.Vec2)

// Ring scatters particles uniformly in angle at radius u+0.2 with a tangential velocity (y, -x).
//
// Parameters:
//   - seed: the random seed; equal seeds produce equal distributions
//
// Returns:
//   - Generator: the ring generator
func Ring(seed uint64) Generator {
	return func(n int) ([]common.Vec2, []common.Vec2) {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		pos := make([]common.Vec2, n)
		vel := make([]common.Vec2, n)
		for i := range n {
			th := 2 * math.Pi * rng.Float64()
			r := rng.Float64() + 0.2
			x, y := float32(r*math.Cos(th)), float32(r*math.Sin(th))
			pos[i] = common.Vec2{X: x, Y: y}
			vel[i] = common.Vec2{X: y, Y: -x}
		}
		return pos, vel
	}
}

// Arc places particles on a quarter-turn arc of radius 1.3 to 1.8 moving on near-circular orbits,
// with a small random velocity jitter.
//
// Parameters:
//   - seed: the random seed; equal seeds produce equal distributions
//
// Returns:
//   - Generator: the arc generator
func Arc(seed uint64) Generator {
	return func(n int) ([]common.Vec2, []common.Vec2) {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		centred := func() float64 { return rng.Float64() - 0.5 }
		pos := make([]common.Vec2, n)
		vel := make([]common.Vec2, n)
		for i := range n {
			th := 0.5 * math.Pi * centred()
			r := 0.5*rng.Float64() + 1.3
			x, y := r*math.Cos(th), r*math.Sin(th)
			pos[i] = common.Vec2{X: float32(x), Y: float32(y)}
			vel[i] = common.Vec2{
				X: float32(y/r + 0.01*centred()),
				Y: float32(-x/r - 0.01*centred()),
			}
		}
		return pos, vel
	}
}

// Fixed returns a generator that yields copies of the given slices, whatever n is requested.
func Fixed(pos, vel []common.Vec2) Generator {
	return func(int) ([]common.Vec2, []common.Vec2) {
		return append([]common.Vec2(nil), pos...), append([]common.Vec2(nil), vel...)
	}
}

// ParseGenerator resolves a generator by name, as used in configuration.
//
// Parameters:
//   - name: "ring" or "arc"
//   - seed: the random seed
//
// Returns:
//   - Generator: the named generator
//   - bool: false if the name is unknown
func ParseGenerator(name string, seed uint64) (Generator, bool) {
	switch name {
	case "ring":
		return Ring(seed), true
	case "arc":
		return Arc(seed), true
	default:
		return nil, false
	}
}
