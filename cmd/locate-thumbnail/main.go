package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"thumblocate"
	"thumblocate/internal/config"
	"thumblocate/internal/utils"
	"thumblocate/pkg/imageio"
	"thumblocate/pkg/locator"
	"thumblocate/pkg/visualize"
)

func main() {
	var configPath, outDir, format string
	var saveThumbnail, saveVisualization, downsize bool
	var quality, workers int
	var lossless bool

	flag.StringVar(&configPath, "config", "", "path to JSON config file (optional)")
	flag.StringVar(&outDir, "out", "", "output directory (default: alongside each thumbnail)")
	flag.StringVar(&format, "thumbnail-format", "jpg", "format for saved images: jpg|png|webp")
	flag.BoolVar(&saveThumbnail, "save-thumbnail", false, "save the reconstructed thumbnail at full size")
	flag.BoolVar(&saveVisualization, "save-visualization", false, "save a match visualization per pair")
	flag.BoolVar(&downsize, "downsize", false, "downscale reconstructions to fit within the thumbnail dimensions")
	flag.IntVar(&quality, "quality", 90, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP lossless mode")
	flag.IntVar(&workers, "workers", 1, "number of pairs to process concurrently")
	flag.Parse()

	pairs, err := utils.PairFiles(flag.Args())
	if err != nil {
		log.Printf("usage: %s [options] THUMBNAIL MASTER [THUMBNAIL MASTER ...]", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		log.Fatal(err)
	}

	cfg := config.Default()
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
	}
	cfg.Reconstruct.FitWithinThumbnail = cfg.Reconstruct.FitWithinThumbnail || downsize
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	cfg.Output.Format = strings.ToLower(format)
	cfg.Output.Quality = quality
	cfg.Output.Lossless = lossless
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if cfg.Output.Dir != "" {
		if err := utils.EnsureDir(cfg.Output.Dir); err != nil {
			log.Fatal(err)
		}
	}

	loc := thumblocate.NewWithConfig(
		cfg.DetectionConfig(),
		cfg.MatchConfig(),
		cfg.EstimatorConfig(),
		cfg.ReconstructorConfig(),
	)

	batch := make([]thumblocate.BatchPair, len(pairs))
	for i, p := range pairs {
		batch[i] = thumblocate.BatchPair{Thumbnail: p.Thumbnail, Master: p.Master}
	}

	failures := 0
	for _, item := range loc.LocateBatch(batch, workers) {
		if item.Err != nil {
			log.Printf("error processing %s %s: %v", item.Pair.Thumbnail, item.Pair.Master, item.Err)
			failures++
			continue
		}
		if err := emit(item, cfg, saveThumbnail, saveVisualization); err != nil {
			log.Printf("error writing output for %s: %v", item.Pair.Thumbnail, err)
			failures++
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}

// emit prints the pair's report as one JSON object and writes the requested
// artifacts.
func emit(item thumblocate.BatchItem, cfg *config.Config, saveThumbnail, saveVisualization bool) error {
	report := item.Result.Report

	js, err := json.Marshal(report)
	if err != nil {
		return err
	}
	fmt.Println(string(js))

	switch report.Outcome {
	case locator.OutcomeLocated:
		if report.RotationUnclassified {
			log.Printf("%s: corner ordering matched no rotation pattern; reporting 0 degrees", item.Pair.Thumbnail)
		}
	case locator.OutcomeInsufficientMatches:
		log.Printf("%s: found only %d matches; skipping reconstruction", item.Pair.Thumbnail, report.MatchCount)
	case locator.OutcomeDegenerateGeometry:
		log.Printf("%s: matches did not agree on a transform; no reliable reconstruction", item.Pair.Thumbnail)
	}

	if saveThumbnail && item.Result.Reconstruction != nil {
		path := utils.ReconstructionFilename(item.Pair.Thumbnail, cfg.Output.Dir, cfg.Output.Format)
		if err := imageio.Save(item.Result.Reconstruction.Image, path, cfg.Output.Format, cfg.Output.Quality, cfg.Output.Lossless); err != nil {
			return err
		}
		log.Printf("saved reconstructed thumbnail %s", path)
	}

	if saveVisualization {
		thumbnail, err := imageio.LoadSmart(item.Pair.Thumbnail)
		if err != nil {
			return err
		}
		master, err := imageio.LoadSmart(item.Pair.Master)
		if err != nil {
			return err
		}
		vis := visualize.Render(thumbnail, master, item.Result)
		path := utils.VisualizationFilename(item.Pair.Thumbnail, cfg.Output.Dir, cfg.Output.Format)
		if err := imageio.Save(vis, path, cfg.Output.Format, cfg.Output.Quality, cfg.Output.Lossless); err != nil {
			return err
		}
		log.Printf("saved match visualization %s", path)
	}

	return nil
}
