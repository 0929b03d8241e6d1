package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"dicomseries/internal/models"
	"dicomseries/pkg/config"
	"dicomseries/pkg/decode"
	"dicomseries/pkg/resample"
	"dicomseries/pkg/series"
	"dicomseries/pkg/telemetry"
	"dicomseries/pkg/visualization"
)

func main() {
	// Parse command line arguments
	input := flag.String("input", "", "Series location: directory, .zip bundle or one file of the series")
	configPath := flag.String("config", "dicomseries.yaml", "YAML configuration file")
	initConfig := flag.String("init-config", "", "Write a default configuration file to this path and exit")
	workers := flag.Int("workers", 0, "Parallel decode workers (default: from config)")
	preview := flag.Bool("preview", false, "Export preview images along each configured axis")
	previewDir := flag.String("preview-dir", "", "Directory for preview images (default: from config)")
	targetSpacing := flag.Float64("resample", 0, "Resample along depth to this slice spacing in mm")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	// Validate inputs
	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *workers > 0 {
		cfg.Loader.Workers = *workers
	}
	if *preview {
		cfg.Preview.Enabled = true
	}
	if *previewDir != "" {
		cfg.Preview.OutputDir = *previewDir
	}
	if *targetSpacing > 0 {
		cfg.Resample.TargetSpacingZ = *targetSpacing
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	os.Exit(run(cfg, *input))
}

// run loads the series and reports it; the return value is the exit code
func run(cfg *config.Config, input string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		log.Printf("Warning: tracing disabled: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Printf("Warning: failed to flush traces: %v", err)
		}
	}()

	// The decoder capability is checked once for the whole process
	if err := series.Init(decode.New()); err != nil {
		log.Printf("Decoder unavailable: %v", err)
	}
	defer series.Shutdown()

	var logger *log.Logger
	if cfg.Output.Verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	loader := series.NewLoader(&series.Params{
		Workers:    cfg.Loader.Workers,
		Tolerances: cfg.Tolerances(),
		Logger:     logger,
	})

	fmt.Println("================================")
	fmt.Println("DICOM SERIES VOLUME ASSEMBLY")
	fmt.Println("================================")

	startTime := time.Now()
	vol, err := loader.Load(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Loading failed (%s): %v\n", series.Classify(err), err)
		return 1
	}
	processingTime := time.Since(startTime)

	if cfg.Resample.TargetSpacingZ > 0 {
		vol, err = resample.AlongDepth(vol, cfg.Resample.TargetSpacingZ, cfg.Loader.Workers)
		if err != nil {
			log.Printf("Resampling failed: %v", err)
			return 1
		}
	}

	lo, hi := visualization.IntensityRange(vol)
	extent := vol.Extent()
	fmt.Printf("\nSeries loaded in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Description:   %s\n", vol.SeriesDescription)
	fmt.Printf("Dimensions:    %d x %d x %d voxels\n", vol.Width, vol.Height, vol.Depth)
	fmt.Printf("Spacing:       %.4f x %.4f x %.4f mm\n", vol.SpacingX, vol.SpacingY, vol.SpacingZ)
	fmt.Printf("Extent:        %.1f x %.1f x %.1f mm\n", extent.X, extent.Y, extent.Z)
	fmt.Printf("Depth axis:    %s (origin %.2f, %.2f, %.2f)\n", vol.DepthAxis, vol.Origin.X, vol.Origin.Y, vol.Origin.Z)
	fmt.Printf("Samples:       %d-bit %s, rescale %g*v%+g\n", vol.BitsAllocated, signedness(vol.SignedPixel), vol.RescaleSlope, vol.RescaleIntercept)
	fmt.Printf("Intensity:     [%.1f, %.1f]\n", lo, hi)

	if cfg.Preview.Enabled {
		if err := exportPreview(vol, cfg); err != nil {
			log.Printf("Warning: preview export failed: %v", err)
		}
	}
	return 0
}

func signedness(signed bool) string {
	if signed {
		return "signed"
	}
	return "unsigned"
}

// exportPreview writes PNG slices along each configured axis
func exportPreview(vol models.Volume, cfg *config.Config) error {
	viewer := visualization.NewViewer(vol)
	viewer.SetWindow(visualization.Window{Center: cfg.Preview.WindowCenter, Width: cfg.Preview.WindowWidth})
	viewer.SetAspectCorrection(true)

	cmap, err := visualization.ColormapByName(cfg.Preview.Colormap)
	if err != nil {
		return err
	}
	viewer.SetColormap(cmap)

	fmt.Println("\nExporting preview slices...")
	for _, axis := range cfg.Preview.Axes {
		axisDir := filepath.Join(cfg.Preview.OutputDir, axis)
		fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)
		if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
			return fmt.Errorf("failed to save %s-axis slices: %w", axis, err)
		}
	}
	fmt.Println("Preview export completed!")
	return nil
}
