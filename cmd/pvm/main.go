// Command pvm loads a binary artifact produced by pasm and runs it to
// completion on a single thread.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavm/pavm/vm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pvm <artifact>",
		Short: "Load and run a binary artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
	return cmd
}

func run(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	art, err := vm.Load(raw)
	if err != nil {
		return err
	}

	machine := vm.New(art)
	return machine.Run()
}
