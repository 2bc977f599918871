package monitor

import (
	"context"
	"io"
	"testing"

	"github.com/gaeqs/gojams/emulator"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T, source string) *Monitor {
	t.Helper()
	program, err := emulator.AssembleProgram(emulator.NewMIPS32InstructionSet(), emulator.NewRegisterSet(), source)
	require.NoError(t, err)
	mem := emulator.BuildHierarchy(emulator.NewMIPS32Memory(false),
		emulator.CacheBuilder{Kind: emulator.CACHE_DIRECT_MAPPED, BlockSize: 4, Blocks: 4})
	sim, err := emulator.NewSimulation(emulator.ARCH_PIPELINED, program, mem, emulator.DefaultRegistry())
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(context.Background(), sim, logrus.NewEntry(log))
}

func TestMonitorActions(t *testing.T) {
	m := newTestMonitor(t, "addiu $t0, $zero, 5\naddiu $t1, $t0, 1")
	assert.Contains(t, m.view.pipeline, "IF")
	assert.Equal(t, []float64{0}, m.view.hitRatios)

	assert.Equal(t, "step", m.handle(ACTION_STEP))
	m.refresh()
	assert.Contains(t, m.view.pipeline, "addiu $t0, $zero, 5")
	assert.Contains(t, m.view.stats, "1 cycles")

	assert.Equal(t, "undo", m.handle(ACTION_UNDO))
	assert.Equal(t, "undo: nothing to undo", m.handle(ACTION_UNDO))

	assert.Equal(t, "run", m.handle(ACTION_RUN))
	require.NoError(t, m.sim.Wait())
	m.refresh()
	assert.Contains(t, m.view.stats, "finished")
	assert.Greater(t, m.view.hitRatios[0], 0.0)
	assert.NoError(t, m.view.err)

	assert.Contains(t, m.handle(ACTION_STEP), "step: ")
	assert.Equal(t, "pause", m.handle(ACTION_PAUSE))
	assert.Equal(t, "reset", m.handle(ACTION_RESET))
	m.refresh()
	assert.Contains(t, m.view.stats, "initial")
}

func TestMonitorShowsErrors(t *testing.T) {
	m := newTestMonitor(t, "break")
	m.handle(ACTION_STEP)
	for i := 0; i < 10 && m.sim.State() != emulator.STATE_FINISHED; i++ {
		m.handle(ACTION_STEP)
	}
	m.refresh()
	assert.Error(t, m.view.err)
}

func TestDrawData(t *testing.T) {
	var dd DrawData
	dd.PushRect(0, 0, 10, 5, textColor)
	require.Len(t, dd.VtxBuffer, 6)
	assert.Equal(t, Vec2{10, 5}, dd.VtxBuffer[5].Position)

	dd = DrawData{}
	dd.PushBar(0, 0, 100, 10, 1.5, hitColor, missColor)
	require.Len(t, dd.VtxBuffer, 12)
	assert.Equal(t, Vec2{100, 0}, dd.VtxBuffer[1].Position)
	assert.Equal(t, hitColor, dd.VtxBuffer[0].Color)

	assert.Panics(t, func() { dd.PushQuad(Vertex{}) })
}
