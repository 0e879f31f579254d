package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rgo-lang/rgoc"
)

const defaultWritePermission = 0644 // -rw-r--r--

func main() {
	cmd := &cli.Command{
		Name:      "rgoc",
		Usage:     "compile a CPS source program to x86-64 NASM assembly",
		ArgsUsage: "[input_path [output_path]]",
		Action:    run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()

	if args.Len() > 2 {
		return fmt.Errorf("usage: %s %s", cmd.Name, cmd.ArgsUsage)
	}

	in := os.Stdin
	out := os.Stdout

	if args.Len() >= 1 {
		f, err := os.Open(args.Get(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	if args.Len() == 2 {
		f, err := os.OpenFile(args.Get(1), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaultWritePermission)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return rgoc.Compile(in, out, rgoc.NewConfig())
}
