package pid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"manual", Manual, false},
		{"MAN", Manual, false},
		{"auto", Automatic, false},
		{" Automatic ", Automatic, false},
		{"cascade", Manual, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "manual", Manual.String())
	assert.Equal(t, "auto", Automatic.String())
}

func TestEngage_Bumpless(t *testing.T) {
	m, err := NewManual(2.0, 5.0, 1.0, 1.0)
	require.NoError(t, err)
	require.NoError(t, m.SetOutputLimits(0, 100))
	require.NoError(t, m.SetInputLimits(0, 200))

	m.SetSetPoint(80)
	m.SetProcessValue(80)
	m.SetBias(35)

	a := m.Engage()
	assert.Nil(t, m.core)
	assert.Equal(t, Automatic, a.Mode())
	assert.InDelta(t, 0.4, a.prevScaledPV, 1e-12)
	assert.InDelta(t, 0.35, a.prevOutput, 1e-12)

	assert.InDelta(t, 35.0, a.Compute(), 1e-9)
}

func TestRelease_HoldsOutput(t *testing.T) {
	m, err := NewManual(1.0, 10.0, 0, 1.0)
	require.NoError(t, err)
	m.SetSetPoint(2.0)
	m.SetProcessValue(1.0)

	a := m.Engage()
	out := a.Compute()

	m = a.Release()
	assert.Nil(t, a.core)
	assert.Equal(t, Manual, m.Mode())
	assert.Equal(t, out, m.Output())

	// Re-engaging starts from the held output.
	a = m.Engage()
	assert.InDelta(t, out/3.3, a.prevOutput, 1e-12)
}

func TestManualController_Configures(t *testing.T) {
	m, err := NewManual(1.0, 0, 0, 1.0)
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetTunings(0, 1, 1), ErrInvalidTuning)
	assert.ErrorIs(t, m.SetInterval(0), ErrInvalidInterval)
	assert.NoError(t, m.SetInterval(0.25))
	assert.Equal(t, 0.25, m.Interval())

	m.SetOutput(2.5)
	assert.Equal(t, 2.5, m.Output())
}

func TestNewManual_Rejects(t *testing.T) {
	m, err := NewManual(0, 1, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidTuning)
	assert.Nil(t, m)
}
