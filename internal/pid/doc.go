// Package pid implements a discrete-time PID controller working in scaled
// units.
//
// The process variable and setpoint are mapped into [0,1] through the input
// limits, the control law runs on those fractions, and the result is mapped
// back into real-world units through the output limits. The controller
// integrates with conditional anti-windup, takes its derivative on the
// measurement rather than the error, and keeps its output continuous when
// tunings, limits, the sample interval or the mode change while running.
//
// # Usage
//
//	c, err := pid.New(2.0, 5.0, 1.0, 0.1) // Kc, tauI, tauD, interval
//	if err != nil {
//		return err
//	}
//	c.SetInputLimits(0, 200)
//	c.SetOutputLimits(0, 1)
//	c.SetSetPoint(80)
//	c.SetMode(pid.Automatic)
//	for range ticker.C {
//		c.SetProcessValue(readSensor())
//		drive(c.Compute())
//	}
//
// Compute must only be called while the controller is automatic. The
// [ManualController] and [AutomaticController] variants enforce that at
// compile time: only the automatic variant has Compute, and
// [ManualController.Engage] performs the bumpless transfer.
//
// # Thread Safety
//
// A Controller is NOT safe for concurrent use. Drive it from a single
// control-loop goroutine or guard it with a caller-owned mutex.
package pid
