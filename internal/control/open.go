package control

// OpenLoop applies a fixed actuator command regardless of the process value.
type OpenLoop struct {
	U float64
}

func NewOpenLoop(u float64) *OpenLoop {
	return &OpenLoop{U: u}
}

func (o *OpenLoop) Compute(pv float64, t float64) float64 {
	return o.U
}
