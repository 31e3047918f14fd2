// Package viz renders control loop runs in the terminal.
//
// [PlotResult] draws a finished run with asciigraph. [Live] is a Bubble Tea
// model that steps a closed loop in real time and lets the operator drive
// the controller the way a panel would:
//
//	Space  - Pause/Resume
//	A      - Toggle manual/automatic (bumpless)
//	Up/Dn  - Raise/lower the setpoint by 1% of the input span
//	Lt/Rt  - Lower/raise the manual output by 1% of the output span
//	Tab    - Select Kc, tau_i or tau_d
//	[ ]    - Retune the selected parameter by -10%/+10%
//	+/-    - Change simulation speed
//	T      - Cycle color themes
//	?      - Show help overlay
//
// [RunPicker] shows a scenario menu in front of the live view.
package viz
