package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"warpresample/pkg/config"
	"warpresample/pkg/export"
	"warpresample/pkg/field"
	"warpresample/pkg/geom"
	"warpresample/pkg/landmarks"
	"warpresample/pkg/source"
	"warpresample/pkg/stack"
)

// movingImage is the slice stack of the configuration wrapped in a Warped
// source carrying the configured transform.
type movingImage struct {
	native *source.ArraySource
	warped *source.Warped
}

func loadMovingImage(ctx context.Context, cfg *config.Config) (*movingImage, error) {
	slices, err := stack.LoadDir(ctx, cfg.Input.Dir, cfg.Input.SliceGap, cfg.Export.NumThreads)
	if err != nil {
		return nil, err
	}
	native, err := stack.NewSource(cfg.Input.Name, slices, cfg.VoxelSize())
	if err != nil {
		return nil, err
	}
	xfm, err := cfg.Transform.Build(3)
	if err != nil {
		return nil, err
	}

	w := source.NewWarped(native, "warped")
	w.UpdateTransform(xfm)
	w.SetTransformed(true)
	return &movingImage{native: native, warped: w}, nil
}

// newExporter configures an exporter for the warped moving image with the
// native image as the target defining the default interval.
func newExporter(cfg *config.Config, img *movingImage, logger *log.Logger, progress export.ProgressWriter, handler export.ResultHandler) (*export.Exporter, error) {
	interp, err := field.ParseInterpolation(cfg.Export.Interpolation)
	if err != nil {
		return nil, err
	}
	policy, err := export.ParsePolicy(cfg.Export.Policy)
	if err != nil {
		return nil, err
	}

	sources := []source.Source{img.warped, img.native}
	e, err := export.NewExporter(sources, []int{0}, []int{1}, interp, progress,
		export.WithLogger(logger),
		export.WithNumThreads(cfg.Export.NumThreads),
		export.WithPolicy(policy),
		export.WithVirtual(cfg.Export.Virtual),
		export.WithTimepoint(cfg.Export.Timepoint),
		export.WithResultHandler(handler),
	)
	if err != nil {
		return nil, err
	}
	e.SetRenderResolution(cfg.Export.Resolution...)
	e.SetOffset(cfg.Export.Offset...)
	e.BuildTotalRenderTransform()

	itvl, err := outputInterval(cfg, e)
	if err != nil {
		return nil, err
	}
	if itvl != nil {
		e.SetInterval(*itvl)
	}
	return e, nil
}

// outputInterval returns the interval from the configuration, else from the
// landmark table, else nil to let the exporter derive it.
func outputInterval(cfg *config.Config, e *export.Exporter) (*geom.Interval, error) {
	itvl, err := cfg.OutputInterval()
	if err != nil || itvl != nil {
		return itvl, err
	}
	if cfg.Landmarks.File == "" {
		return nil, nil
	}
	tbl, err := landmarks.Load(cfg.Landmarks.File)
	if err != nil {
		return nil, err
	}
	pts, err := tbl.Points(cfg.Landmarks.Moving, cfg.Landmarks.ActiveOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Landmarks.File, err)
	}
	fromLandmarks, err := e.DestinationIntervalFromLandmarks(pts)
	if err != nil {
		return nil, err
	}
	return &fromLandmarks, nil
}
