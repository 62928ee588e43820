// Command pasm assembles a source file into a binary artifact the pvm
// command can load and run.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavm/pavm/asm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "pasm <source.pasm>",
		Short: "Assemble a source file into a binary artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcPath := args[0]
			if outPath == "" {
				outPath = srcPath + ".out"
			}

			src, err := os.ReadFile(srcPath)
			if err != nil {
				return err
			}

			out, err := asm.Assemble(string(src))
			if err != nil {
				return err
			}

			return os.WriteFile(outPath, out, 0o644)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output artifact path (default: <source>.out)")
	return cmd
}
