package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kylev/reelsweep/internal/config"
	"github.com/kylev/reelsweep/internal/ffmpeg"
	"github.com/kylev/reelsweep/internal/logging"
	"github.com/kylev/reelsweep/internal/pipeline"
	"github.com/kylev/reelsweep/internal/scene"
	"github.com/kylev/reelsweep/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reelsweep",
	Short: "reelsweep - home video cleanup pipeline",
	Long:  "Splits digitized home video captures at scene cuts, pauses for manual sorting, then concatenates and transcodes each group for archival and Plex.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./reelsweep.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(scenesCmd)
	rootCmd.AddCommand(concatCmd)
	rootCmd.AddCommand(plexCmd)
}

var processCmd = &cobra.Command{
	Use:   "process [video file or directory]",
	Short: "Run the full cleanup pipeline, resuming from saved state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		media, err := ffmpeg.New(log.Logger, cfg.FFmpeg.Threads)
		if err != nil {
			return err
		}
		orch := pipeline.New(log.Logger, cfg, media, pipeline.NewConsolePrompter())

		info, err := os.Stat(args[0])
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", args[0], err)
		}

		var results []*pipeline.Result
		if info.IsDir() {
			results, err = orch.ProcessBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
		} else {
			results = []*pipeline.Result{orch.Process(cmd.Context(), args[0])}
		}

		failures := 0
		for _, r := range results {
			if r.Err != nil {
				failures++
				ev := log.Error().
					Err(r.Err).
					Str("input", r.Input).
					Str("state", string(r.State))
				if len(r.FailedUnits) > 0 {
					ev = ev.Strs("failed_units", r.FailedUnits)
				}
				ev.Msg("incomplete, re-run to resume from this state")
				continue
			}
			log.Info().Str("input", r.Input).Msg("completed")
		}
		if failures > 0 {
			return fmt.Errorf("%d of %d input(s) did not complete", failures, len(results))
		}
		return nil
	},
}

var scenesOutDir string

var scenesCmd = &cobra.Command{
	Use:   "scenes [video file]",
	Short: "Detect scenes and write audit reports without touching the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		input := args[0]

		media, err := ffmpeg.New(log.Logger, cfg.FFmpeg.Threads)
		if err != nil {
			return err
		}

		fps := cfg.Detect.DefaultFrameRate
		if info, err := media.ProbeVideo(cmd.Context(), input); err != nil {
			log.Warn().Err(err).Float64("fallback_fps", fps).Msg("probe failed, using default frame rate")
		} else if info.FPS > 0 {
			fps = info.FPS
		}

		extractor := scene.NewExtractor(log.Logger, media, cfg.Detect.AnalysisWidth, cfg.Detect.AnalysisHeight)
		descriptors, err := extractor.Descriptors(cmd.Context(), input, fps)
		if err != nil {
			return err
		}
		total := time.Duration(float64(len(descriptors)) / fps * float64(time.Second))

		detector := scene.NewDetector(log.Logger, cfg.Detect.HighThreshold, cfg.Detect.MinSceneLen)
		segments, candidates, err := detector.Detect(descriptors, total)
		if err != nil {
			return err
		}
		if err := scene.Validate(segments, total); err != nil {
			return err
		}

		for i, s := range segments {
			log.Info().
				Int("scene", i+1).
				Str("start", util.FormatDuration(s.Start)).
				Str("end", util.FormatDuration(s.End)).
				Msg("scene")
		}

		stem := util.Stem(input)
		if _, err := scene.ExportScenes(scenesOutDir, stem, segments); err != nil {
			return err
		}
		if _, err := scene.ExportDissimilarities(scenesOutDir, stem, candidates); err != nil {
			return err
		}
		dense := detector.DiagnosticBoundaries(descriptors, cfg.Detect.LowThreshold)
		if _, err := scene.ExportDiagnosticBoundaries(scenesOutDir, stem, input, cfg.Detect.LowThreshold, dense, total); err != nil {
			return err
		}

		log.Info().Int("scenes", len(segments)).Str("out", scenesOutDir).Msg("reports written")
		return nil
	},
}

var concatCmd = &cobra.Command{
	Use:   "concat [clip folder]",
	Short: "Losslessly concatenate a folder of clips in name order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		dir := args[0]

		media, err := ffmpeg.New(log.Logger, cfg.FFmpeg.Threads)
		if err != nil {
			return err
		}

		clips, err := filepath.Glob(filepath.Join(dir, "*"+cfg.InputExtension))
		if err != nil {
			return err
		}
		if len(clips) == 0 {
			return fmt.Errorf("no %s clips found in %s", cfg.InputExtension, dir)
		}

		finalsDir := filepath.Join(dir, "finals")
		if err := util.EnsureDir(finalsDir); err != nil {
			return err
		}
		output := filepath.Join(finalsDir, filepath.Base(dir)+cfg.InputExtension)

		if err := media.Concat(cmd.Context(), clips, output); err != nil {
			return err
		}
		log.Info().Int("clips", len(clips)).Str("output", output).Msg("concatenated")
		return nil
	},
}

var plexAspect string

var plexCmd = &cobra.Command{
	Use:   "plex [video file]",
	Short: "Transcode one file to the delivery format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		input := args[0]

		geometry := ffmpeg.Geometry(plexAspect)
		if plexAspect == "16:9" {
			geometry = ffmpeg.GeometryAnamorphic
		}
		if !geometry.Valid() {
			return fmt.Errorf("unknown aspect %q, want 4:3 or 16:9", plexAspect)
		}

		media, err := ffmpeg.New(log.Logger, cfg.FFmpeg.Threads)
		if err != nil {
			return err
		}

		output := input[:len(input)-len(filepath.Ext(input))] + ".mp4"
		err = media.Transcode(cmd.Context(), ffmpeg.TranscodeOptions{
			Input:        input,
			Output:       output,
			Geometry:     geometry,
			CRF:          cfg.FFmpeg.CRF,
			Preset:       cfg.FFmpeg.Preset,
			AudioBitrate: cfg.FFmpeg.AudioBitrate,
			ProgressFunc: func(p *ffmpeg.Progress) {
				log.Debug().Str("out_time", util.FormatDuration(p.OutTime)).Str("speed", p.Speed).Msg("transcoding")
			},
		})
		if err != nil {
			return err
		}

		log.Info().Str("output", output).Msg("delivery transcode complete")
		return nil
	},
}

func init() {
	scenesCmd.Flags().StringVar(&scenesOutDir, "out", "analysis", "directory for audit reports")
	plexCmd.Flags().StringVar(&plexAspect, "aspect", "4:3", "display aspect ratio (4:3 or 16:9)")
}
