// Package dynamo provides the primitives shared by the closed-loop
// simulator.
//
// The package defines the fundamental interfaces and types:
//
//   - [State]: vector representing plant state
//   - [Plant]: a simulated process (dX/dt = f(X, u, t)) with a measured output
//   - [Integrator]: numerical integrator interface
//   - [Controller]: sampled feedback controller interface
//   - [Sample]: one recorded step of the loop, fed to metrics and observers
//
// # Example
//
//	p := plant.NewThermal()
//	integ := integrators.NewRK4()
//	s := sim.New(p, integ, loop)
//	result, _ := s.Run(ctx, p.Initial(), cfg)
//
// # Thread Safety
//
// Plants and controllers carry state and are NOT thread-safe. Parallel runs
// must each build their own.
package dynamo
