package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/gpucode/playtwo/playtwo"
	"github.com/gpucode/playtwo/playtwo/backend"
)

func main() {
	app := cli.NewApp()
	app.Name = "playtwo"
	app.Description = "A PlayStation 2 emulator core"
	app.Usage = "playtwo --bios <BIOS file> [options]"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "bios",
			Usage: "Path to a 4MB PS2 BIOS image (required)",
		},
		cli.StringFlag{
			Name:  "elf",
			Usage: "Optional ELF to load into EE RAM instead of booting from the BIOS",
		},
		cli.Uint64Flag{
			Name:  "ticks",
			Usage: "Number of scheduler ticks to run before exiting (0 = run until interrupted)",
		},
		cli.BoolFlag{
			Name:  "terminal",
			Usage: "Render the GS framebuffer into the terminal",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("emulator exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	biosPath := c.String("bios")
	if biosPath == "" {
		cli.ShowAppHelp(c)
		return errors.New("no BIOS path provided")
	}

	var (
		renderer backend.Renderer
		term     *backend.Terminal
	)
	if c.Bool("terminal") {
		t, err := backend.NewTerminal()
		if err != nil {
			return fmt.Errorf("initializing terminal backend: %w", err)
		}
		defer t.Close()
		renderer, term = t, t
	} else {
		renderer = backend.NewHeadless()
	}

	machine, err := playtwo.NewWithBIOS(biosPath, renderer)
	if err != nil {
		return err
	}

	if elfPath := c.String("elf"); elfPath != "" {
		if err := machine.LoadELFFile(elfPath); err != nil {
			return fmt.Errorf("loading ELF: %w", err)
		}
	}

	if ticks := c.Uint64("ticks"); ticks > 0 {
		for i := uint64(0); i < ticks; i++ {
			machine.Tick()
		}
		fmt.Print(machine.ConsoleLog())
		return nil
	}

	// Run until the user interrupts or closes the terminal view.
	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-interrupted:
		case <-quitChannel(term):
		}
		machine.Stop()
	}()

	slog.Info("starting emulation", "bios", biosPath)
	machine.Run()
	fmt.Print(machine.ConsoleLog())
	return nil
}

func quitChannel(t *backend.Terminal) <-chan struct{} {
	if t == nil {
		return make(chan struct{})
	}
	return t.Quit()
}
