package sim_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidloop/internal/control"
	"github.com/san-kum/pidloop/internal/dynamo"
	"github.com/san-kum/pidloop/internal/integrators"
	"github.com/san-kum/pidloop/internal/pid"
	"github.com/san-kum/pidloop/internal/plant"
	"github.com/san-kum/pidloop/internal/sim"
)

type countingMetric struct {
	count int
	sum   float64
}

func (m *countingMetric) Name() string { return "count" }
func (m *countingMetric) Observe(s dynamo.Sample) {
	m.count++
	m.sum += s.PV
}
func (m *countingMetric) Value() float64 { return float64(m.count) }
func (m *countingMetric) Reset() {
	m.count = 0
	m.sum = 0
}

// runaway diverges to +Inf in finite time.
type runaway struct{}

func (runaway) Derive(x dynamo.State, u float64, t float64) dynamo.State {
	return dynamo.State{x[0] * x[0] * 1e6}
}
func (runaway) StateDim() int                  { return 1 }
func (runaway) Initial() dynamo.State          { return dynamo.State{1} }
func (runaway) Measure(x dynamo.State) float64 { return x[0] }

func ovenLoop(events ...control.Event) (*sim.Simulator, *plant.Thermal, *control.Loop) {
	c, err := pid.New(4.0, 60.0, 0, 1.0)
	Expect(err).NotTo(HaveOccurred())
	Expect(c.SetInputLimits(0, 200)).To(Succeed())
	Expect(c.SetOutputLimits(0, 1)).To(Succeed())
	c.SetSetPoint(80)
	c.SetMode(pid.Automatic)

	p := plant.NewThermal()
	loop := control.NewLoop(c, control.WithEvents(events...))
	return sim.New(p, integrators.NewRK4(), loop), p, loop
}

var _ = Describe("Simulator", func() {
	var cfg dynamo.Config

	BeforeEach(func() {
		cfg = dynamo.Config{Dt: 0.1, Duration: 300, ValidateState: true}
	})

	Describe("closed loop", func() {
		It("drives the oven to its setpoint", func() {
			s, p, _ := ovenLoop()
			res, err := s.Run(context.Background(), p.Initial(), cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Steps).To(Equal(3000))
			Expect(res.PV[len(res.PV)-1]).To(BeNumerically("~", 80, 0.5))
		})

		It("keeps every output within the output limits", func() {
			s, p, _ := ovenLoop()
			res, err := s.Run(context.Background(), p.Initial(), cfg)
			Expect(err).NotTo(HaveOccurred())

			for _, u := range res.Outputs {
				Expect(u).To(BeNumerically(">=", 0))
				Expect(u).To(BeNumerically("<=", 1))
			}
		})

		It("records setpoint and mode from the loop", func() {
			s, p, _ := ovenLoop(
				control.Event{At: 10, Kind: control.Mode, Args: []float64{0}},
				control.Event{At: 20, Kind: control.SetPoint, Args: []float64{60}},
			)
			cfg.Duration = 30
			res, err := s.Run(context.Background(), p.Initial(), cfg)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.Auto[0]).To(BeTrue())
			Expect(res.Auto[150]).To(BeFalse())
			Expect(res.SetPoints[0]).To(Equal(80.0))
			Expect(res.SetPoints[250]).To(Equal(60.0))
		})

		It("feeds metrics and reports their values", func() {
			s, p, _ := ovenLoop()
			m := &countingMetric{}
			s.AddMetric(m)

			cfg.Duration = 1
			res, err := s.Run(context.Background(), p.Initial(), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Metrics).To(HaveKeyWithValue("count", 10.0))
		})
	})

	Describe("validation", func() {
		DescribeTable("rejects bad configs",
			func(dt, duration float64) {
				s, p, _ := ovenLoop()
				_, err := s.Run(context.Background(), p.Initial(), dynamo.Config{Dt: dt, Duration: duration})
				Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
			},
			Entry("zero dt", 0.0, 1.0),
			Entry("negative dt", -0.1, 1.0),
			Entry("zero duration", 0.1, 0.0),
			Entry("negative duration", 0.1, -1.0),
			Entry("duration shorter than dt", 0.05, 0.02),
		)

		It("rejects an initial state of the wrong size", func() {
			s, _, _ := ovenLoop()
			_, err := s.Run(context.Background(), dynamo.State{1, 2}, cfg)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("stops on a diverging state", func() {
			s := sim.New(runaway{}, integrators.NewEuler(), control.NewOpenLoop(0))
			res, err := s.Run(context.Background(), runaway{}.Initial(), cfg)

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
			Expect(res.Steps).To(BeNumerically("<", 3000))
		})

		It("honours cancellation", func() {
			s, p, _ := ovenLoop()
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := s.Run(ctx, p.Initial(), cfg)
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.Steps).To(BeZero())
		})
	})

	Describe("RunAll", func() {
		It("returns results in job order", func() {
			jobs := make([]sim.Job, 0, 3)
			for _, sp := range []float64{40, 60, 80} {
				s, p, loop := ovenLoop()
				loop.Controller().SetSetPoint(sp)
				jobs = append(jobs, sim.Job{Name: "oven", Sim: s, X0: p.Initial(), Cfg: cfg})
			}

			results, err := sim.RunAll(context.Background(), jobs, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for i, sp := range []float64{40, 60, 80} {
				final := results[i].PV[len(results[i].PV)-1]
				Expect(math.Abs(final - sp)).To(BeNumerically("<", 1))
			}
		})

		It("fails when any job fails", func() {
			s, p, _ := ovenLoop()
			bad := sim.Job{Name: "bad", Sim: s, X0: p.Initial(), Cfg: dynamo.Config{}}
			_, err := sim.RunAll(context.Background(), []sim.Job{bad}, 4)
			Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
			Expect(err.Error()).To(HavePrefix("bad: "))
		})
	})
})
