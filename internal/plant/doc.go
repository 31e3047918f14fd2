// Package plant provides simulated processes for closed-loop runs.
//
// Each plant implements [dynamo.Plant], defining the differential
// equations of the process and which state the sensor reports:
//
//   - [Thermal]: first-order heater, measures temperature
//   - [Motor]: DC motor with armature inductance, measures speed
//   - [Servo]: mass-spring-damper, measures position
//
// All plants implement [dynamo.Configurable] so scenario files can set
// their physical parameters.
package plant

import (
	"fmt"

	"github.com/san-kum/pidloop/internal/dynamo"
)

func paramError(name string, value float64) error {
	return fmt.Errorf("%w: %s=%g", dynamo.ErrParameterBounds, name, value)
}

func unknownParam(name string) error {
	return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
}
