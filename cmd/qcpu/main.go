package main

import (
	"bufio"
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v2"

	"qcpu/asm"
	"qcpu/cpu"
	"qcpu/mem"
)

// bindConsole attaches the host side of the syscall contract. There is
// no display here, so only the character, reserved and yield ids are
// bound; programs calling the drawing ids get the missing-syscall
// diagnostic and carry on.
func bindConsole(c *cpu.Cpu) {
	in := bufio.NewReader(os.Stdin)

	// write char: low byte of x to stdout
	c.Bind(0x06, func(c *cpu.Cpu, _ cpu.Arg) {
		fmt.Printf("%c", byte(c.Registers.X))
	})

	// read char into x; end of input exits cleanly
	c.Bind(0x07, func(c *cpu.Cpu, _ cpu.Arg) {
		b, err := in.ReadByte()
		if err != nil {
			c.Flags.Exit = 0
			return
		}
		c.Registers.X = uint16(b)
	})

	// reserved
	c.Bind(0x0B, func(*cpu.Cpu, cpu.Arg) {})
	c.Bind(0x0C, func(*cpu.Cpu, cpu.Arg) {})

	// yield until frame; the run loop releases it each iteration
	c.Bind(0x20, func(c *cpu.Cpu, _ cpu.Arg) {
		c.Flags.Blok = true
	})
}

func loadImage(path string) (*cpu.Cpu, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := cpu.New(&mem.Bus{})
	bindConsole(c)
	if err := c.Load(img); err != nil {
		return nil, err
	}
	return c, nil
}

func main() {
	app := &cli.App{
		Name:    "qcpu",
		Usage:   "assemble and run qcpu images",
		Version: "v0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "report exit code and cycle count",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "load an image and run it to completion",
				ArgsUsage: "<image>",
				Action: func(ctx *cli.Context) error {
					if ctx.Args().Len() < 1 {
						return cli.Exit("usage: qcpu run <image>", 1)
					}
					c, err := loadImage(ctx.Args().Get(0))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					c.Run()
					if ctx.Bool("verbose") {
						fmt.Fprintf(os.Stderr, "exit %d after %d cycles\n", c.Flags.Exit, c.CycleCount)
					}
					return nil
				},
			},
			{
				Name:      "asm",
				Usage:     "assemble a source file into an image",
				ArgsUsage: "<source> <image>",
				Action: func(ctx *cli.Context) error {
					if ctx.Args().Len() < 2 {
						return cli.Exit("usage: qcpu asm <source> <image>", 1)
					}
					source, err := os.ReadFile(ctx.Args().Get(0))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					img, err := asm.New().Assemble(string(source))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if err := os.WriteFile(ctx.Args().Get(1), img, 0o644); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if ctx.Bool("verbose") {
						fmt.Fprintf(os.Stderr, "wrote %d words\n", len(img)/2)
					}
					return nil
				},
			},
			{
				Name:      "debug",
				Usage:     "load an image and step through it interactively",
				ArgsUsage: "<image>",
				Action: func(ctx *cli.Context) error {
					if ctx.Args().Len() < 1 {
						return cli.Exit("usage: qcpu debug <image>", 1)
					}
					c, err := loadImage(ctx.Args().Get(0))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					if err := c.Debug(); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
