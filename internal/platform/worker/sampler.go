// Package worker implements the dynamic worker pool and call-dispatch layer
// a distributed module is proxied through (§4.13).
package worker

import "runtime"

// Sampler reports a point-in-time load estimate in [0, 1]. Pool polls it on
// every tick to feed the scale-up/scale-down EMA.
type Sampler interface {
	Sample() float64
}

// poolLoadSampler is the default Sampler. Neither the teacher nor any pack
// repo vendors an in-process OS-level CPU sampling library (the common ones
// require cgo), so this is a deliberate standard-library-only stand-in: it
// estimates load from the pool's live queue depth relative to its current
// worker count, not actual CPU time.
type poolLoadSampler struct {
	pool *Pool
}

// Sample implements Sampler.
func (s *poolLoadSampler) Sample() float64 {
	return s.pool.queueLoad()
}

// defaultMaxWorkers implements maxWorkers = max(2, cpuCount-1) (§4.13).
func defaultMaxWorkers() int {
	if n := runtime.NumCPU() - 1; n > 2 {
		return n
	}

	return 2
}
