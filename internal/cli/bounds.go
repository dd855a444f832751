package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"warpresample/pkg/bounds"
	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

// maxBoundsSamples caps --samples; a 3D estimate maps about 6*samples^2
// points.
const maxBoundsSamples = 1024

func newBoundsCmd() *cobra.Command {
	var samples int

	cmd := &cobra.Command{
		Use:   "bounds",
		Short: "Print the native and transformed bounding intervals of the moving image",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if samples > maxBoundsSamples {
				return fmt.Errorf("--samples %d exceeds the maximum of %d", samples, maxBoundsSamples)
			}
			img, err := loadMovingImage(ctx, cfg)
			if err != nil {
				return err
			}

			native := img.native.Interval(0, 0)
			physical, err := bounds.EstimateBounds(img.native.SourceTransform(0, 0), native)
			if err != nil {
				return err
			}
			warped, err := img.warped.EstimateBoundingInterval(0, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", StyleTitle.Render(img.warped.Name()))
			printInterval(cmd, "native", native)
			printInterval(cmd, "physical", physical)
			printInterval(cmd, "warped", warped)

			if samples >= 2 {
				inv, err := transform.Invert(img.warped.Transform())
				if err != nil {
					return err
				}
				toView, err := transform.Chain(img.native.SourceTransform(0, 0), inv)
				if err != nil {
					return err
				}
				fine, err := bounds.EstimateBoundsSubdivided(toView, native, samples)
				if err != nil {
					return err
				}
				printInterval(cmd, fmt.Sprintf("warped (%d samples)", samples), fine)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 0, "also estimate with this many boundary samples per dimension")
	return cmd
}

func printInterval(cmd *cobra.Command, label string, itvl geom.Interval) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %-22s %s  %s\n", StyleDim.Render(label), itvl.String(),
		StyleDim.Render(fmt.Sprintf("%v", itvl.Dimensions())))
}
