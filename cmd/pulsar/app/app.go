package app

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/pulsarpkg/arcfinder/internal/arcfind"
	"github.com/pulsarpkg/arcfinder/internal/fitsio"
	"github.com/pulsarpkg/arcfinder/internal/spectrum"
	"github.com/pulsarpkg/arcfinder/internal/storage"
)

// Run dispatches the subcommand named by args[0] against the observation
// database from the configuration.
func Run(ctx context.Context, config *Config, logger *slog.Logger, args []string) error {
	store := storage.New(config.Storage.Database)
	defer store.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "ingest":
		return runIngest(ctx, store, logger, rest)
	case "list":
		return runList(ctx, store, rest)
	case "analyze":
		return runAnalyze(ctx, store, config, logger, rest)
	case "delete":
		return runDelete(ctx, store, logger, rest)
	default:
		return fmt.Errorf("unknown command %q, expected one of: ingest, list, analyze, delete", cmd)
	}
}

func runIngest(ctx context.Context, store *storage.Store, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	rotate := fs.Bool("rotate", false, "Stored matrix is time x frequency and must be transposed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("ingest: no observation files provided")
	}

	for _, path := range fs.Args() {
		meta, data, err := fitsio.ReadFile(path, *rotate)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		id, err := store.IngestObservation(ctx, meta, data)
		if err != nil {
			return fmt.Errorf("storing %s: %w", path, err)
		}

		logger.Info("observation ingested",
			slog.Int64("id", id),
			slog.Group("observation",
				slog.String("source", meta.Source),
				slog.String("filename", meta.Filename),
				slog.Float64("mjd", meta.MJD),
				slog.String("frequency", fmt.Sprintf("%.2f MHz", meta.CenterFrequency)),
				slog.String("samples", fmt.Sprintf("%d x %d", meta.ChannelCount, meta.SubintCount)),
				slog.String("size", humanize.Bytes(uint64(meta.ChannelCount*meta.SubintCount*8))),
			))
	}

	return nil
}

func runDelete(ctx context.Context, store *storage.Store, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.Int64("id", 0, "Observation ID to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("delete: observation id is required")
	}

	if err := store.DeleteObservation(ctx, *id); err != nil {
		return fmt.Errorf("deleting observation %d: %w", *id, err)
	}

	logger.Info("observation deleted", slog.Int64("id", *id))
	return nil
}

func runList(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var filter storage.Filter
	fs.StringVar(&filter.Source, "source", "", "Filter by source name substring")
	fs.Float64Var(&filter.MJDMin, "mjd-min", 0, "Lowest MJD to include")
	fs.Float64Var(&filter.MJDMax, "mjd-max", 0, "Highest MJD to include")
	fs.Float64Var(&filter.FreqMin, "freq-min", 0, "Lowest centre frequency to include, MHz")
	fs.Float64Var(&filter.FreqMax, "freq-max", 0, "Highest centre frequency to include, MHz")
	if err := fs.Parse(args); err != nil {
		return err
	}

	observations, err := store.Observations(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tFILENAME\tMJD\tFREQ (MHz)\tCHAN x SUBINT\tINGESTED")
	for _, obs := range observations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\t%.2f\t%d x %d\t%s\n",
			obs.ID,
			obs.Meta.Source,
			obs.Meta.Filename,
			obs.Meta.MJD,
			obs.Meta.CenterFrequency,
			obs.Meta.ChannelCount,
			obs.Meta.SubintCount,
			humanize.Time(obs.Ingested))
	}
	return w.Flush()
}

func runAnalyze(ctx context.Context, store *storage.Store, config *Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	id := fs.Int64("id", 0, "Observation ID to analyze")
	plotDir := fs.String("plot", "", "Directory to write profile plots into (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("analyze: observation id is required")
	}

	obs, err := store.Observation(ctx, *id)
	if err != nil {
		return fmt.Errorf("loading observation %d: %w", *id, err)
	}
	raw, err := store.ObservationData(ctx, *id)
	if err != nil {
		return fmt.Errorf("loading observation %d data: %w", *id, err)
	}

	sec, err := prepareSecondary(obs.Meta, raw, &config.Analysis)
	if err != nil {
		return err
	}

	g := sec.Grid()
	logger.Info("secondary spectrum prepared",
		slog.Group("spectrum",
			slog.String("source", obs.Meta.Source),
			slog.Int("rows", g.Rows()),
			slog.Int("cols", g.Cols()),
		))

	engine, err := findArc(sec, &config.Analysis, logger)
	if err != nil {
		return err
	}

	curvature, offsets, widths := engine.Profiles()
	if err = saveProfiles(ctx, store, *id, curvature, offsets, widths); err != nil {
		return err
	}

	if *plotDir != "" {
		if err = plotProfiles(*plotDir, obs.Meta.Source, curvature, offsets, widths); err != nil {
			return fmt.Errorf("plotting profiles: %w", err)
		}
		logger.Info("profile plots written", slog.String("directory", *plotDir))
	}

	return nil
}

// prepareSecondary builds the cleaned dynamic spectrum and its secondary
// spectrum as configured.
func prepareSecondary(meta spectrum.Metadata, raw [][]float64, a *AnalysisConfig) (*spectrum.Secondary, error) {
	dynOpts := []spectrum.DynamicOption{
		spectrum.WithClipSigma(a.ClipSigma),
		spectrum.WithFrequencyNormalization(a.NormalizeFrequency),
		spectrum.WithTimeNormalization(a.TimeNormalization()),
	}
	dyn, err := spectrum.NewDynamic(raw, meta, dynOpts...)
	if err != nil {
		return nil, fmt.Errorf("building dynamic spectrum: %w", err)
	}

	secOpts := []spectrum.SecondaryOption{
		spectrum.WithCropScales(a.FringeCrop(), a.DelayCrop()),
	}
	if a.FullDelayAxis {
		secOpts = append(secOpts, spectrum.WithFullDelayAxis())
	}
	sec, err := spectrum.NewSecondary(dyn, secOpts...)
	if err != nil {
		return nil, fmt.Errorf("building secondary spectrum: %w", err)
	}
	return sec, nil
}

// findArc sweeps the configured curvature range, then measures power and
// thickness along the best arc it finds.
func findArc(sec *spectrum.Secondary, a *AnalysisConfig, logger *slog.Logger) (*arcfind.Engine, error) {
	engineOpts := []arcfind.Option{arcfind.WithLogger(logger)}
	if a.Workers > 0 {
		engineOpts = append(engineOpts, arcfind.WithWorkers(a.Workers))
	}
	if a.SigmaY > 0 || a.SigmaX > 0 {
		engineOpts = append(engineOpts, arcfind.WithSigma(a.SigmaY, a.SigmaX))
	}
	engine := arcfind.New(sec, engineOpts...)

	curvature, err := engine.CurvatureSweep(a.Curvature.EtaMin, a.Curvature.EtaMax, a.Curvature.Samples)
	if err != nil {
		return nil, fmt.Errorf("curvature sweep: %w", err)
	}

	peak, ok := curvature.Peak()
	if !ok {
		return nil, fmt.Errorf("curvature sweep produced no samples")
	}
	logger.Info("arc curvature found",
		slog.Float64("eta", peak.Eta),
		slog.Float64("power", peak.Power))

	if _, err = engine.PowerAlongParabola(peak.Eta, a.Parabola.Points, a.Parabola.SigmaPx); err != nil {
		return nil, fmt.Errorf("power along parabola: %w", err)
	}

	if a.Width.MaxOffset > 0 {
		if _, err = engine.ParabolaWidth(peak.Eta, a.Width.MaxOffset, a.Width.Offsets); err != nil {
			return nil, fmt.Errorf("parabola width: %w", err)
		}
	} else {
		logger.Debug("width scan skipped, analysis.width.maxOffset is not set")
	}

	return engine, nil
}

func saveProfiles(ctx context.Context, store *storage.Store, id int64,
	curvature arcfind.CurvatureProfile, offsets arcfind.OffsetProfile, widths arcfind.WidthProfile) error {

	if curvature != nil {
		points := make([]storage.ProfilePoint, len(curvature))
		for i, p := range curvature {
			points[i] = storage.ProfilePoint{Key: p.Eta, Power: p.Power}
		}
		if err := store.SaveProfile(ctx, id, storage.ProfileCurvature, points); err != nil {
			return fmt.Errorf("saving curvature profile: %w", err)
		}
	}
	if offsets != nil {
		points := make([]storage.ProfilePoint, len(offsets))
		for i, p := range offsets {
			points[i] = storage.ProfilePoint{Key: p.X, Power: p.Power}
		}
		if err := store.SaveProfile(ctx, id, storage.ProfileOffset, points); err != nil {
			return fmt.Errorf("saving arc power profile: %w", err)
		}
	}
	if widths != nil {
		points := make([]storage.ProfilePoint, len(widths))
		for i, p := range widths {
			points[i] = storage.ProfilePoint{Key: p.Offset, Power: p.Power}
		}
		if err := store.SaveProfile(ctx, id, storage.ProfileWidth, points); err != nil {
			return fmt.Errorf("saving width profile: %w", err)
		}
	}
	return nil
}
