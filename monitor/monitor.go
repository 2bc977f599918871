package monitor

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/gaeqs/gojams/emulator"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/sirupsen/logrus"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const (
	SCREEN_WIDTH  = 1024
	SCREEN_HEIGHT = 640
	LINE_HEIGHT   = 14
)

type Action uint8

const (
	ACTION_STEP  Action = iota // Execute one step
	ACTION_RUN   Action = iota // Run in the background
	ACTION_PAUSE Action = iota // Stop the background run
	ACTION_UNDO  Action = iota
	ACTION_RESET Action = iota
	ACTION_COPY  Action = iota // Copy the register dump to the clipboard
)

func (action Action) String() string {
	names := [...]string{"step", "run", "pause", "undo", "reset", "copy"}
	if int(action) < len(names) {
		return names[action]
	}
	return fmt.Sprintf("Action(%d)", uint8(action))
}

var bindings = []struct {
	key    ebiten.Key
	action Action
}{
	{ebiten.KeyS, ACTION_STEP},
	{ebiten.KeyR, ACTION_RUN},
	{ebiten.KeyP, ACTION_PAUSE},
	{ebiten.KeyU, ACTION_UNDO},
	{ebiten.KeyBackspace, ACTION_RESET},
	{ebiten.KeyC, ACTION_COPY},
}

var (
	textColor   = color.RGBA{220, 220, 220, 255}
	headerColor = color.RGBA{0, 220, 90, 255}
	errorColor  = color.RGBA{240, 80, 80, 255}
	hitColor    = color.RGBA{0, 180, 90, 255}
	missColor   = color.RGBA{90, 40, 40, 255}
)

// Text shown by the monitor, taken while no step is in progress
type snapshot struct {
	registers string
	pipeline  string
	stats     string
	hitRatios []float64 // One per cache level, L1 first
	err       error
}

// An Ebitengine window showing the registers, pipeline and cache
// statistics of a simulation. Implements ebiten.Game
type Monitor struct {
	sim *emulator.Simulation
	ctx context.Context
	log *logrus.Entry

	view     snapshot
	status   string
	drawData DrawData

	clipboardOnce sync.Once
	clipboardOK   bool
}

func New(ctx context.Context, sim *emulator.Simulation, log *logrus.Entry) *Monitor {
	m := &Monitor{sim: sim, ctx: ctx, log: log, status: "S step  R run  P pause  U undo  Backspace reset  C copy"}
	m.refresh()
	return m
}

// Opens the window and blocks until it's closed. Must be called from the
// main goroutine
func (m *Monitor) Run() error {
	ebiten.SetWindowSize(SCREEN_WIDTH, SCREEN_HEIGHT)
	ebiten.SetWindowTitle(fmt.Sprintf("gojams - %v", m.sim.Architecture()))
	ebiten.SetWindowResizable(true)
	if err := ebiten.RunGame(m); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

func (m *Monitor) refresh() {
	m.sim.Inspect(func(sim *emulator.Simulation) {
		m.view = snapshot{
			registers: emulator.FormatRegisters(sim.Registers),
			pipeline:  emulator.FormatPipeline(sim),
			stats:     emulator.FormatStats(sim),
			err:       sim.Err(),
		}
		for _, level := range emulator.CacheLevels(sim.Memory) {
			stats := level.Stats()
			ratio := 0.0
			if stats.Operations > 0 {
				ratio = float64(stats.Hits) / float64(stats.Operations)
			}
			m.view.hitRatios = append(m.view.hitRatios, ratio)
		}
	})
}

// Performs `action` and returns the status line describing the outcome
func (m *Monitor) handle(action Action) string {
	var err error
	switch action {
	case ACTION_STEP:
		err = m.sim.NextStep()
	case ACTION_RUN:
		err = m.sim.Start(m.ctx)
	case ACTION_PAUSE:
		m.sim.Stop()
	case ACTION_UNDO:
		err = m.sim.UndoStep()
	case ACTION_RESET:
		err = m.sim.Reset()
	case ACTION_COPY:
		err = m.copyRegisters()
	}

	m.log.WithField("action", action.String()).WithError(err).Debug("monitor action")
	if err != nil {
		return fmt.Sprintf("%v: %v", action, err)
	}
	return action.String()
}

func (m *Monitor) copyRegisters() error {
	m.clipboardOnce.Do(func() {
		m.clipboardOK = clipboard.Init() == nil
	})
	if !m.clipboardOK {
		return errors.New("clipboard unavailable")
	}
	clipboard.Write(clipboard.FmtText, []byte(m.view.registers))
	return nil
}

func (m *Monitor) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		m.sim.Stop()
		return ebiten.Termination
	}
	for _, binding := range bindings {
		if inpututil.IsKeyJustPressed(binding.key) {
			m.status = m.handle(binding.action)
		}
	}
	m.refresh()
	return nil
}

func drawText(screen *ebiten.Image, s string, x, y int, clr color.Color) int {
	face := basicfont.Face7x13
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		text.Draw(screen, line, face, x, y, clr)
		y += LINE_HEIGHT
	}
	return y
}

func (m *Monitor) Draw(screen *ebiten.Image) {
	x, y := 12, 20
	y = drawText(screen, "REGISTERS", x, y, headerColor)
	y = drawText(screen, m.view.registers, x, y, textColor)

	y = drawText(screen, "\nPIPELINE", x, y+LINE_HEIGHT/2, headerColor)
	y = drawText(screen, m.view.pipeline, x, y, textColor)

	y = drawText(screen, "\nSTATISTICS", x, y+LINE_HEIGHT/2, headerColor)
	y = drawText(screen, m.view.stats, x, y, textColor)

	for i, ratio := range m.view.hitRatios {
		label := fmt.Sprintf("L%d hits %5.1f%%", i+1, ratio*100)
		drawText(screen, label, x, y+LINE_HEIGHT, textColor)
		m.drawData.PushBar(float32(x+150), float32(y+4), 300, 10, ratio, hitColor, missColor)
		y += LINE_HEIGHT + 4
	}
	m.drawData.Flush(screen)

	if m.view.err != nil {
		drawText(screen, m.view.err.Error(), x, y+2*LINE_HEIGHT, errorColor)
	}
	drawText(screen, m.status, x, SCREEN_HEIGHT-LINE_HEIGHT, textColor)
}

func (m *Monitor) Layout(_, _ int) (int, int) {
	return SCREEN_WIDTH, SCREEN_HEIGHT
}
