package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepBalancedPhases(t *testing.T) {
	m := &motor{temperature: ambient}

	for range 50 {
		p := m.step(10 * time.Millisecond)
		assert.InDelta(t, 0, p.CurrentU+p.CurrentV+p.CurrentW, 1e-9)
		assert.InDelta(t, 0, p.VoltageU+p.VoltageV+p.VoltageW, 1e-9)
		assert.Equal(t, "NORMAL", p.Status)
		assert.Positive(t, p.Speed)
	}
}

func TestStepOverheat(t *testing.T) {
	m := &motor{temperature: overheatLimit + 10}

	p := m.step(10 * time.Millisecond)
	assert.Equal(t, "E_OVERHEAT", p.Status)
}
