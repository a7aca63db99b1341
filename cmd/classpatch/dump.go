package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump IMAGE [CLASS...]",
		Short: "Disassemble the classes of an image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0], nil)
			if err != nil {
				return err
			}
			classes, err := img.selectClasses(args[1:])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				fmt.Fprintf(w, "; %s: version %d, %d classes\n", img.path, img.header.Version, len(classes))
			}
			for _, cw := range classes {
				fmt.Fprint(w, cw.Node().Disassemble())
			}
			return nil
		},
	}
	return cmd
}
