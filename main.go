package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gaeqs/gojams/emulator"
	"github.com/gaeqs/gojams/monitor"
	"github.com/gaeqs/gojams/sysbundle"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

type options struct {
	program     string
	arch        string
	caches      string
	delay       time.Duration
	undo        int
	penalty     int
	syscalls    string
	interactive bool
	gui         bool
	bigEndian   bool
	verbose     bool
}

func main() {
	// parse arguments
	var opts options
	flag.StringVar(&opts.program, "program", "", "program to run: assembly (.s, .asm) or a hex word listing")
	flag.StringVar(&opts.arch, "arch", "single-cycle", "architecture: single-cycle, multi-cycle, pipelined or multi-alu")
	flag.StringVar(&opts.caches, "cache", "", "comma separated cache levels, L1 first (kind:block:blocks[:set]:write:replacement)")
	flag.DurationVar(&opts.delay, "delay", 0, "pause between steps while running")
	flag.IntVar(&opts.undo, "undo", 1024, "steps kept in the undo history")
	flag.IntVar(&opts.penalty, "penalty", 0, "extra pipeline cycles per cache miss")
	flag.StringVar(&opts.syscalls, "syscalls", "", "Lua file defining extra syscall handlers")
	flag.BoolVar(&opts.interactive, "interactive", false, "step with single key presses")
	flag.BoolVar(&opts.gui, "gui", false, "open the monitor window")
	flag.BoolVar(&opts.bigEndian, "big-endian", false, "use big endian memory")
	flag.BoolVar(&opts.verbose, "v", false, "log every step")
	flag.Parse()

	log := logrus.New()
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if opts.program == "" {
		flag.Usage()
		os.Exit(2)
	}

	code, err := run(opts, log)
	if err != nil {
		log.WithError(err).Error("simulation failed")
		os.Exit(1)
	}
	os.Exit(code)
}

func run(opts options, log *logrus.Logger) (int, error) {
	arch, err := emulator.ParseArchitecture(opts.arch)
	if err != nil {
		return 0, err
	}
	program, err := loadProgram(opts.program, log)
	if err != nil {
		return 0, err
	}

	mem, err := buildMemory(opts)
	if err != nil {
		return 0, err
	}

	// console input shares stdin with the key reader in interactive mode
	var in io.Reader = os.Stdin
	if opts.interactive {
		in = strings.NewReader("")
	}
	registry := emulator.DefaultRegistry()
	sysbundle.NewConsole(in, os.Stdout).Register(registry.Syscalls)
	if opts.syscalls != "" {
		bundle, err := loadLuaSyscalls(opts.syscalls, registry.Syscalls)
		if err != nil {
			return 0, err
		}
		defer bundle.Close()
	}

	sim, err := emulator.NewSimulation(arch, program, mem, registry,
		emulator.WithUndoLimit(opts.undo),
		emulator.WithCycleDelay(opts.delay),
		emulator.WithMissPenalty(opts.penalty),
		emulator.WithLogger(log.WithField("arch", arch.String())),
	)
	if err != nil {
		return 0, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case opts.gui:
		err = monitor.New(ctx, sim, log.WithField("component", "monitor")).Run()
		sim.Stop()
		if waitErr := sim.Wait(); err == nil {
			err = waitErr
		}
	case opts.interactive:
		err = interactive(ctx, sim)
	default:
		err = runToEnd(ctx, sim)
	}

	fmt.Fprint(os.Stderr, "\n", emulator.FormatStats(sim))
	if err != nil {
		return 0, err
	}
	code, _ := sim.ExitCode()
	return code, nil
}

func loadProgram(path string, log *logrus.Logger) (*emulator.Program, error) {
	log.WithField("path", path).Info("loading program")
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var program *emulator.Program
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		program, err = emulator.AssembleProgram(emulator.NewMIPS32InstructionSet(), emulator.NewRegisterSet(), string(data))
	default:
		program, err = emulator.ReadProgram(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.WithFields(logrus.Fields{
		"text":    len(program.Text.Words),
		"data":    len(program.Data.Words),
		"kernel":  len(program.Kernel.Words),
		"elapsed": time.Since(start),
	}).Info("program loaded")
	return program, nil
}

func buildMemory(opts options) (emulator.Memory, error) {
	var builders []emulator.CacheBuilder
	for _, spec := range strings.Split(opts.caches, ",") {
		if spec = strings.TrimSpace(spec); spec == "" {
			continue
		}
		b, err := emulator.ParseCacheBuilder(spec)
		if err != nil {
			return nil, err
		}
		builders = append(builders, b)
	}
	return emulator.BuildHierarchy(emulator.NewMIPS32Memory(opts.bigEndian), builders...), nil
}

func loadLuaSyscalls(path string, table *emulator.SyscallTable) (*sysbundle.LuaSyscalls, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return sysbundle.LoadLuaSyscalls(table, file, filepath.Base(path), os.Stdout)
}

// Runs the program in the background until it ends or ctx is cancelled
func runToEnd(ctx context.Context, sim *emulator.Simulation) error {
	if err := sim.Start(ctx); err != nil {
		return err
	}
	group, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	group.Go(func() error {
		defer close(done)
		return sim.Wait()
	})
	group.Go(func() error {
		select {
		case <-ctx.Done():
			sim.Stop()
		case <-done:
		}
		return nil
	})
	return group.Wait()
}

const help = "s step  r run  p pause  u undo  x reset  q quit"

// Reads single key presses from a raw terminal and drives the simulation
func interactive(ctx context.Context, sim *emulator.Simulation) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("interactive mode needs a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	// raw mode doesn't translate newlines
	write := func(s string) {
		fmt.Fprint(os.Stdout, strings.ReplaceAll(s, "\n", "\r\n"))
	}
	show := func() {
		sim.Inspect(func(sim *emulator.Simulation) {
			write(emulator.FormatPipeline(sim) + emulator.FormatRegisters(sim.Registers) + emulator.FormatStats(sim))
		})
	}

	group, ctx := errgroup.WithContext(ctx)
	keys := make(chan byte)
	group.Go(func() error {
		defer close(keys)
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return nil
			}
			if buf[0] == 'q' || buf[0] == 3 {
				return nil
			}
		}
	})
	group.Go(func() error {
		write(help + "\n")
		show()
		for {
			var key byte
			var ok bool
			select {
			case <-ctx.Done():
				sim.Stop()
				return sim.Wait()
			case key, ok = <-keys:
			}
			if !ok {
				sim.Stop()
				return sim.Wait()
			}

			var err error
			switch key {
			case 's':
				err = sim.NextStep()
			case 'r':
				err = sim.Start(ctx)
			case 'p':
				sim.Stop()
				err = sim.Wait()
			case 'u':
				err = sim.UndoStep()
			case 'x':
				err = sim.Reset()
			case 'q', 3:
				sim.Stop()
				return sim.Wait()
			default:
				write(help + "\n")
				continue
			}
			if err != nil && !errors.Is(err, emulator.ErrFinished) {
				write(fmt.Sprintf("error: %v\n", err))
			}
			show()
		}
	})
	return group.Wait()
}
