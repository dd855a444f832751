package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"warpresample/pkg/bounds"
	"warpresample/pkg/export"
	"warpresample/pkg/field"
	"warpresample/pkg/raster"
	"warpresample/pkg/visualization"
	"warpresample/pkg/warpmag"
)

func newMagnitudeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "magnitude",
		Short: "Write the displacement magnitude of the configured transform",
		Long:  `magnitude samples, over the warped bounds of the moving image, the distance between each point and its image under the configured transform, and writes it as JPEG sections.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg := configFromContext(ctx)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(cfg.Output.Dir, "magnitude")
			}

			img, err := loadMovingImage(ctx, cfg)
			if err != nil {
				return err
			}
			e, err := newExporter(cfg, img, logger, nil, nil)
			if err != nil {
				return err
			}
			render := e.RenderTransform()

			viewBounds, err := img.warped.EstimateBoundingInterval(0, 0)
			if err != nil {
				return err
			}
			mag, err := warpmag.New(viewBounds.Real(), img.warped.Transform(), nil)
			if err != nil {
				return err
			}

			itvl, err := outputInterval(cfg, e)
			if err != nil {
				return err
			}
			if itvl == nil {
				toPixels, err := render.Invert()
				if err != nil {
					return err
				}
				pixels, err := bounds.EstimateBounds(toPixels, viewBounds)
				if err != nil {
					return err
				}
				itvl = &pixels
			}

			t := newTimer(logger)
			r := raster.New(*itvl)
			failures, err := export.CopyBySlice(field.Transformed(mag, render), r, cfg.Export.NumThreads,
				newProgressBar(cmd.ErrOrStderr(), "magnitude"))
			if err != nil {
				return err
			}
			res := &export.Result{
				Interval:        *itvl,
				RenderTransform: render,
				Channels: []export.Channel{{
					Name:   "magnitude",
					Raster: r,
					Stats:  export.StatsOf(r.Data()),
				}},
				Failures: failures,
			}
			t.done(fmt.Sprintf("Sampled warp magnitude over %v", res.Interval))

			axes, err := cfg.OutputAxes()
			if err != nil {
				return err
			}
			writer := visualization.NewSliceWriter(output, axes...)
			writer.Logger = logger
			if writer.Region, err = cfg.OutputRegion(); err != nil {
				return err
			}
			if err := writer.HandleResult(res); err != nil {
				return err
			}
			printResult(cmd, res)
			return res.Err()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory for magnitude slices (default <output.dir>/magnitude)")
	return cmd
}
