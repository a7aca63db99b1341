package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/classpatch/engine"
)

func newRenderCommand() *cobra.Command {
	var (
		libraries []string
		weak      bool
		output    string
	)
	cmd := &cobra.Command{
		Use:   "render IMAGE [CLASS...]",
		Short: "Write a template that matches classes of an image",
		Long: `Render describes the named classes (all classes by default) as a
template. With --weak every name is written as a weak identifier, so the
template also matches renamed copies of the classes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0], libraries)
			if err != nil {
				return err
			}
			sess := engine.NewSession(img.classes)
			classes, err := img.selectClasses(args[1:])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return sess.Render(w, classes, engine.RenderOptions{Weak: weak})
		},
	}
	cmd.Flags().StringSliceVarP(&libraries, "lib", "L", nil, "Library image (repeatable)")
	cmd.Flags().BoolVar(&weak, "weak", false, "Write names as weak identifiers")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the template to a file")
	return cmd
}
