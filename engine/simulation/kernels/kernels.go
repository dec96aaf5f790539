// Package kernels holds the host implementations of the simulation's WGSL entry points for the
// software device. Each kernel reads its resources by the WGSL variable names of the matching shader.
package kernels

import (
	"math"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-gravity/common"
	"github.com/Carmen-Shannon/oxy-gravity/engine/gpu/software_backend"
	"github.com/Carmen-Shannon/oxy-gravity/engine/simulation/shaders"
)

// EntryDisplay is the fragment entry point of the presentation shader.
const EntryDisplay = shaders.EntryDisplayFragment

// All returns every kernel keyed by entry point, ready for software_backend.WithKernels.
func All() map[string]software_backend.Kernel {
	return map[string]software_backend.Kernel{
		shaders.EntryGravity:  Gravity(),
		shaders.EntryVerlet:   Verlet(),
		shaders.EntryDisturb:  Disturb(),
		shaders.EntryDecay:    Decay(),
		shaders.EntryScatter:  Scatter(),
		shaders.EntryColorize: Colorize(),
		EntryDisplay:          Display(),
	}
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// Gravity accumulates the softened pairwise acceleration on each particle from every other particle.
func Gravity() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		pos := software_backend.Storage[common.Vec2](io, "pos")
		acc := software_backend.Storage[common.Vec2](io, "acc")
		mass := software_backend.Storage[float32](io, "mass")
		params := io.Uniform("params")
		n := min(params.U32("count"), uint32(len(pos)), uint32(len(acc)), uint32(len(mass)))
		g := params.F32("g")
		soft := params.F32("softening")
		eps2 := soft * soft
		return func(gid [3]uint32) {
			i := gid[0]
			if i >= n {
				return
			}
			p := pos[i]
			var a common.Vec2
			for j := range n {
				if j == i {
					continue
				}
				d := pos[j].Sub(p)
				r2 := d.LengthSquared() + eps2
				a = a.Add(d.Scale(mass[j] / (r2 * sqrt32(r2))))
			}
			acc[i] = a.Scale(g)
		}
	}}
}

// Verlet advances velocity then position by one time step from the current acceleration.
func Verlet() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		pos := software_backend.Storage[common.Vec2](io, "pos")
		vel := software_backend.Storage[common.Vec2](io, "vel")
		acc := software_backend.Storage[common.Vec2](io, "acc")
		params := io.Uniform("params")
		n := min(params.U32("count"), uint32(len(pos)))
		dt := params.F32("dt")
		return func(gid [3]uint32) {
			i := gid[0]
			if i >= n {
				return
			}
			v := vel[i].Add(acc[i].Scale(dt))
			vel[i] = v
			pos[i] = pos[i].Add(v.Scale(dt))
		}
	}}
}

// Disturb pushes (or pulls, for negative power) particles within the radius of the pointer.
func Disturb() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		pos := software_backend.Storage[common.Vec2](io, "pos")
		vel := software_backend.Storage[common.Vec2](io, "vel")
		u := io.Uniform("disturb")
		n := min(u.U32("count"), uint32(len(pos)))
		center := u.Vec2("center")
		power := u.F32("power")
		radius := u.F32("radius")
		return func(gid [3]uint32) {
			i := gid[0]
			if i >= n {
				return
			}
			d := pos[i].Sub(center)
			r := d.Length()
			if r <= 0 || r >= radius {
				return
			}
			vel[i] = vel[i].Add(d.Scale(power * (1 - r/radius) / r))
		}
	}}
}

// Decay attenuates every density texel by the decay factor.
func Decay() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		density := software_backend.Storage[uint32](io, "density")
		params := io.Uniform("params")
		w, h := params.U32("width"), params.U32("height")
		decay := params.F32("decay")
		return func(gid [3]uint32) {
			x, y := gid[0], gid[1]
			i := y*w + x
			if x >= w || y >= h || int(i) >= len(density) {
				return
			}
			density[i] = uint32(float32(density[i]) * decay)
		}
	}}
}

// Scatter adds one hit to the density texel under each particle. Invocations that share a texel add
// atomically, as the WGSL stage does.
func Scatter() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		pos := software_backend.Storage[common.Vec2](io, "pos")
		density := software_backend.Storage[uint32](io, "density")
		params := io.Uniform("params")
		n := min(params.U32("count"), uint32(len(pos)))
		scale := params.F32("scale")
		wi := params.U32("width")
		w, h := float32(wi), float32(params.U32("height"))
		return func(gid [3]uint32) {
			i := gid[0]
			if i >= n {
				return
			}
			px := pos[i].X*scale + w*0.5
			py := pos[i].Y*scale + h*0.5
			if px < 0 || py < 0 || px >= w || py >= h {
				return
			}
			t := uint32(py)*wi + uint32(px)
			if int(t) < len(density) {
				atomic.AddUint32(&density[t], 1)
			}
		}
	}}
}

// Colorize maps density to colour with the exposure curve 1 - exp(-density * gain).
func Colorize() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		density := software_backend.Storage[uint32](io, "density")
		color := io.Image("color")
		gain := io.Uniform("params").F32("gain")
		return func(gid [3]uint32) {
			x, y := gid[0], gid[1]
			i := y*color.Width + x
			if x >= color.Width || y >= color.Height || int(i) >= len(density) {
				return
			}
			t := 1 - float32(math.Exp(float64(-float32(density[i])*gain)))
			color.StoreUnorm(x, y, [4]float32{sqrt32(t), t, t*t*0.5 + 0.1*t, 1})
		}
	}}
}

// Display samples the colour texture across the whole framebuffer.
func Display() software_backend.Kernel {
	return software_backend.Kernel{Setup: func(io *software_backend.KernelIO) func([3]uint32) {
		src := io.Sampled("color")
		target := io.Target()
		return func(gid [3]uint32) {
			u := (float32(gid[0]) + 0.5) / float32(target.Width)
			v := (float32(gid[1]) + 0.5) / float32(target.Height)
			target.StoreUnorm(gid[0], gid[1], src.Sample(u, v))
		}
	}}
}
