package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"warpresample/pkg/config"
	"warpresample/pkg/export"
	"warpresample/pkg/visualization"
)

type exportFlags struct {
	input   string
	output  string
	threads int
	policy  string
	interp  string
	virtual bool
}

// apply overrides the configuration with the flags set on cmd.
func (f *exportFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input.Dir = f.input
	}
	if flags.Changed("output") {
		cfg.Output.Dir = f.output
	}
	if flags.Changed("threads") {
		cfg.Export.NumThreads = f.threads
	}
	if flags.Changed("policy") {
		cfg.Export.Policy = f.policy
	}
	if flags.Changed("interp") {
		cfg.Export.Interpolation = f.interp
	}
	if flags.Changed("virtual") {
		cfg.Export.Virtual = f.virtual
	}
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Resample the moving image and write it as JPEG sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg := configFromContext(ctx)
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			axes, err := cfg.OutputAxes()
			if err != nil {
				return err
			}

			img, err := loadMovingImage(ctx, cfg)
			if err != nil {
				return err
			}

			writer := visualization.NewSliceWriter(cfg.Output.Dir, axes...)
			writer.Logger = logger
			if writer.Region, err = cfg.OutputRegion(); err != nil {
				return err
			}
			progress := newProgressBar(cmd.ErrOrStderr(), "exporting")
			e, err := newExporter(cfg, img, logger, progress, writer)
			if err != nil {
				return err
			}

			t := newTimer(logger)
			job := e.ExportAsync(ctx)
			select {
			case <-job.Done():
			case <-ctx.Done():
				e.Shutdown()
				<-job.Done()
				return ctx.Err()
			}
			res, err := job.Wait()
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("export canceled")
			}
			t.done(fmt.Sprintf("Exported %d channel(s) over %v", len(res.Channels), res.Interval))
			printResult(cmd, res)
			if res.Failed() {
				return fmt.Errorf("export finished with %d failed region(s): %w", len(res.Failures), res.Err())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "directory of input slices")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "directory for exported slices")
	cmd.Flags().IntVarP(&flags.threads, "threads", "t", 1, "number of export workers")
	cmd.Flags().StringVar(&flags.policy, "policy", "iter", "parallelization policy (iter|slice)")
	cmd.Flags().StringVar(&flags.interp, "interp", "linear", "interpolation (nearest|linear)")
	cmd.Flags().BoolVar(&flags.virtual, "virtual", false, "sample lazily instead of copying into a raster")
	return cmd
}

func printResult(cmd *cobra.Command, res *export.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s job %s\n", StyleTitle.Render("export"), StyleDim.Render(res.JobID))
	for _, ch := range res.Channels {
		if res.Virtual {
			fmt.Fprintf(out, "  %s %s (virtual)\n", iconArrow, ch.Name)
			continue
		}
		fmt.Fprintf(out, "  %s %s min %s max %s mean %s\n", iconArrow, ch.Name,
			StyleNumber.Render(fmt.Sprintf("%.4g", ch.Stats.Min)),
			StyleNumber.Render(fmt.Sprintf("%.4g", ch.Stats.Max)),
			StyleNumber.Render(fmt.Sprintf("%.4g", ch.Stats.Mean)))
	}
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  %s %s\n", StyleWarning.Render(iconWarning), f.Error())
	}
}
