package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/classpatch/engine"
)

func newMatchCommand() *cobra.Command {
	var (
		libraries []string
		maxSteps  int
	)
	cmd := &cobra.Command{
		Use:   "match IMAGE TEMPLATE",
		Short: "Print the bindings of the first match of a template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0], libraries)
			if err != nil {
				return err
			}
			t, err := loadTemplate(args[1])
			if err != nil {
				return err
			}
			sess := engine.NewSession(img.classes, engine.WithMaxSteps(maxSteps))
			res, err := sess.Match(t.classes)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !res.Matched() {
				fmt.Fprintln(w, "no match")
				return nil
			}
			printSnapshot(w, res.Scope().Snapshot())
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&libraries, "lib", "L", nil, "Library image (repeatable)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", engine.DefaultMaxSteps, "Search budget (0 means unbounded)")
	return cmd
}
