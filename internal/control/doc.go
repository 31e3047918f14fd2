// Package control drives a [pid.Controller] from a simulation.
//
// The simulator integrates the plant on a fine timestep and calls its
// controller every step. Controllers in this package adapt that to the
// discrete world of a real control loop:
//
//   - [Loop]: samples the process value every controller interval, holds
//     the output between samples and applies scheduled [Event]s
//   - [OpenLoop]: a fixed actuator command, for step-response tests
//
// # Usage
//
//	c, _ := pid.New(2.0, 30.0, 0, 1.0)
//	loop := control.NewLoop(c, control.WithEvents(events...))
//	s := sim.New(p, integ, loop)
//
// Rejected events are logged and counted; they never stop a run.
package control
