package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kylev/reelsweep/internal/config"
	"github.com/kylev/reelsweep/internal/ffmpeg"
	"github.com/kylev/reelsweep/internal/logging"
	"github.com/kylev/reelsweep/internal/scene"
	"github.com/kylev/reelsweep/internal/segment"
	"github.com/kylev/reelsweep/pkg/util"
	"github.com/rs/zerolog"
)

// Media is the external transcoding collaborator contract the
// orchestrator needs. *ffmpeg.Executor satisfies it.
type Media interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	RawFrames(ctx context.Context, input string, width, height int, each func(frame []byte) error) error
	ExtractRange(ctx context.Context, input string, start, duration time.Duration, output string) error
	Concat(ctx context.Context, inputs []string, output string) error
	Transcode(ctx context.Context, opts ffmpeg.TranscodeOptions) error
}

var _ Media = (*ffmpeg.Executor)(nil)

// Orchestrator advances one input at a time through the resumable state
// machine NEW -> SCENES_EXTRACTED -> CONCATENATED -> PLEX_DONE. All
// progress lives in the persisted Record; the only recovery path after
// a crash is re-invocation, so every stage's side effects are idempotent
// or safely re-overwritable.
type Orchestrator struct {
	logger zerolog.Logger
	cfg    *config.Config
	media  Media
	prompt Prompter
}

// New creates an orchestrator
func New(logger zerolog.Logger, cfg *config.Config, media Media, prompt Prompter) *Orchestrator {
	return &Orchestrator{
		logger: logging.Component(logger, "pipeline"),
		cfg:    cfg,
		media:  media,
		prompt: prompt,
	}
}

// Result summarizes one input's run for the final report.
type Result struct {
	Input       string
	State       State
	Completed   bool
	FailedUnits []string
	Err         error
}

// ProcessBatch runs every matching file in dir sequentially. One input's
// unrecoverable failure is logged and does not abort its siblings. A
// directory with no matching files is a usage error.
func (o *Orchestrator) ProcessBatch(ctx context.Context, dir string) ([]*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var inputs []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), o.cfg.InputExtension) {
			inputs = append(inputs, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(inputs)

	if len(inputs) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", o.cfg.InputExtension, dir)
	}

	results := make([]*Result, 0, len(inputs))
	for _, input := range inputs {
		r := o.Process(ctx, input)
		if r.Err != nil {
			o.logger.Error().
				Err(r.Err).
				Str("input", input).
				Str("state", string(r.State)).
				Msg("input failed, continuing with remaining inputs")
		}
		results = append(results, r)
	}
	return results, nil
}

// Process advances a single input through every incomplete stage. The
// returned Result carries the final state and any per-unit failures; it
// never panics past an input, only records what went wrong.
func (o *Orchestrator) Process(ctx context.Context, input string) *Result {
	res := &Result{Input: input, State: StateNew}

	stem := util.Stem(input)
	logger := o.logger.With().
		Str("input", filepath.Base(input)).
		Str("run_id", uuid.NewString()).
		Logger()

	workDir := filepath.Join(o.cfg.ScratchRoot, stem)
	if err := util.EnsureDir(workDir); err != nil {
		res.Err = fmt.Errorf("failed to create working directory: %w", err)
		return res
	}

	release, err := acquireLock(workDir)
	if err != nil {
		res.Err = err
		return res
	}
	defer release()

	store := NewStore(workDir)
	rec, err := store.Load()
	if err != nil {
		// Corrupt state needs operator intervention; guessing NEW here
		// would re-materialize clips the operator may already have sorted.
		res.Err = err
		return res
	}
	res.State = rec.State

	logger.Info().Str("state", string(rec.State)).Msg("starting pipeline run")

	workingCopy := filepath.Join(workDir, filepath.Base(input))
	clipsDir := filepath.Join(workDir, "clips")

	// The geometry choice is captured once and persisted so resumed runs
	// never re-prompt.
	if rec.Aspect == "" {
		aspect, err := o.prompt.ChooseGeometry(filepath.Base(input))
		if err != nil {
			res.Err = fmt.Errorf("failed to capture geometry choice: %w", err)
			return res
		}
		rec.Aspect = aspect
		if err := store.Save(rec); err != nil {
			res.Err = err
			return res
		}
	}

	if rec.State == StateNew {
		if err := o.runSegmentation(ctx, logger, input, workingCopy, workDir, clipsDir, stem); err != nil {
			res.Err = err
			return res
		}
		rec.State = StateScenesExtracted
		if err := store.Save(rec); err != nil {
			res.Err = err
			return res
		}
		res.State = rec.State
	}

	if rec.State == StateScenesExtracted {
		failed, err := o.runConcatUnits(ctx, logger, clipsDir, rec.Aspect)
		if err != nil {
			res.Err = err
			return res
		}
		if len(failed) > 0 {
			// Failed units keep the state pinned so a re-run retries just
			// them; completed siblings are skipped by their durable outputs.
			res.FailedUnits = failed
			res.Err = fmt.Errorf("%d unit(s) failed delivery transcode: %s", len(failed), strings.Join(failed, ", "))
			return res
		}
		rec.State = StateConcatenated
		if err := store.Save(rec); err != nil {
			res.Err = err
			return res
		}
		res.State = rec.State
	}

	if rec.State == StateConcatenated {
		failed, err := o.runDeliveryPass(ctx, logger, clipsDir, rec.Aspect)
		if err != nil {
			res.Err = err
			return res
		}
		if len(failed) > 0 {
			res.FailedUnits = failed
			res.Err = fmt.Errorf("%d file(s) failed delivery transcode: %s", len(failed), strings.Join(failed, ", "))
			return res
		}
		rec.State = StatePlexDone
		if err := store.Save(rec); err != nil {
			res.Err = err
			return res
		}
		res.State = rec.State
	}

	if rec.State == StatePlexDone {
		if err := o.deliverBack(logger, input, workDir, clipsDir, stem); err != nil {
			res.Err = err
			return res
		}
	}

	res.Completed = true
	logger.Info().Msg("pipeline run complete")
	return res
}

// runSegmentation is the NEW stage: establish the working copy, extract
// frame descriptors, detect scenes, export the audit trail, and
// materialize clips.
func (o *Orchestrator) runSegmentation(ctx context.Context, logger zerolog.Logger, input, workingCopy, workDir, clipsDir, stem string) error {
	if err := o.establishWorkingCopy(logger, input, workingCopy); err != nil {
		return err
	}

	// Probing is advisory; an unreadable header falls back to the
	// configured frame rate instead of aborting.
	fps := o.cfg.Detect.DefaultFrameRate
	if info, err := o.media.ProbeVideo(ctx, workingCopy); err != nil {
		logger.Warn().Err(err).Float64("fallback_fps", fps).Msg("probe failed, using default frame rate")
	} else if info.FPS > 0 {
		fps = info.FPS
	} else {
		logger.Warn().Float64("fallback_fps", fps).Msg("probe reported no frame rate, using default")
	}

	extractor := scene.NewExtractor(logger, o.media, o.cfg.Detect.AnalysisWidth, o.cfg.Detect.AnalysisHeight)
	descriptors, err := extractor.Descriptors(ctx, workingCopy, fps)
	if err != nil {
		return err
	}

	total := time.Duration(float64(len(descriptors)) / fps * float64(time.Second))

	detector := scene.NewDetector(logger, o.cfg.Detect.HighThreshold, o.cfg.Detect.MinSceneLen)
	segments, candidates, err := detector.Detect(descriptors, total)
	if err != nil {
		return err
	}
	if err := scene.Validate(segments, total); err != nil {
		return fmt.Errorf("segment list violates coverage invariant: %w", err)
	}

	for i, s := range segments {
		logger.Debug().
			Int("scene", i).
			Dur("start", s.Start).
			Dur("end", s.End).
			Dur("duration", s.Duration()).
			Msg("detected scene")
	}

	analysisDir := filepath.Join(workDir, "analysis")
	if _, err := scene.ExportScenes(analysisDir, stem, segments); err != nil {
		return err
	}
	if _, err := scene.ExportDissimilarities(analysisDir, stem, candidates); err != nil {
		return err
	}
	dense := detector.DiagnosticBoundaries(descriptors, o.cfg.Detect.LowThreshold)
	if _, err := scene.ExportDiagnosticBoundaries(analysisDir, stem, workingCopy, o.cfg.Detect.LowThreshold, dense, total); err != nil {
		return err
	}

	materializer := segment.New(logger, o.media)
	clips, err := materializer.Materialize(ctx, workingCopy, segments, clipsDir, "clip_01_scene")
	if err != nil {
		return err
	}

	logger.Info().Int("clips", len(clips)).Str("clips_dir", clipsDir).Msg("scenes extracted")
	return nil
}

// establishWorkingCopy duplicates the source into the scratch tree. A
// prior copy whose size matches the source is reused; anything else is
// replaced. The original input is never written to.
func (o *Orchestrator) establishWorkingCopy(logger zerolog.Logger, input, workingCopy string) error {
	srcInfo, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	if srcInfo.Size() == 0 {
		return fmt.Errorf("input %s is empty", input)
	}

	if dstInfo, err := os.Stat(workingCopy); err == nil {
		if dstInfo.Size() == srcInfo.Size() {
			logger.Info().Str("working_copy", workingCopy).Msg("reusing existing working copy with matching size")
			return nil
		}
		logger.Warn().
			Int64("have", dstInfo.Size()).
			Int64("want", srcInfo.Size()).
			Msg("working copy size mismatch, recopying")
		if err := os.Remove(workingCopy); err != nil {
			return fmt.Errorf("failed to remove stale working copy: %w", err)
		}
	}

	logger.Info().Str("working_copy", workingCopy).Int64("bytes", srcInfo.Size()).Msg("copying input to working directory")

	lastPct := -1
	err = util.CopyFile(input, workingCopy, func(copied, total int64) {
		pct := int(copied * 100 / total)
		if pct/10 != lastPct/10 {
			lastPct = pct
			logger.Debug().Int("percent", pct).Msg("copying input")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to establish working copy: %w", err)
	}
	return nil
}

// runConcatUnits is the SCENES_EXTRACTED stage: after the operator has
// sorted clips into sub-folders, each folder becomes one final unit:
// lossless concat in name order, then delivery transcode. Loose clips
// outside any folder are transcoded as their own units. Each unit is
// retried independently; one exhausting its retries never blocks
// siblings. Returns the names of units that failed.
func (o *Orchestrator) runConcatUnits(ctx context.Context, logger zerolog.Logger, clipsDir string, aspect ffmpeg.Geometry) ([]string, error) {
	if err := o.prompt.AwaitSorted(clipsDir); err != nil {
		return nil, err
	}

	// Resume re-scans the clips directory rather than re-segmenting.
	entries, err := os.ReadDir(clipsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan clips directory: %w", err)
	}

	var failed []string

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		unit := e.Name()
		unitDir := filepath.Join(clipsDir, unit)

		clips, err := listMovFiles(unitDir)
		if err != nil {
			return nil, err
		}
		if len(clips) == 0 {
			logger.Warn().Str("unit", unit).Msg("sub-folder has no clips, skipping")
			continue
		}

		finalsDir := filepath.Join(unitDir, "finals")
		if err := util.EnsureDir(finalsDir); err != nil {
			return nil, fmt.Errorf("failed to create finals dir: %w", err)
		}
		concatOut := filepath.Join(finalsDir, unit+".mov")

		if util.NonEmptyFile(concatOut) {
			logger.Info().Str("unit", unit).Msg("concatenated file already present, keeping it")
		} else {
			logger.Info().Str("unit", unit).Int("clips", len(clips)).Msg("concatenating unit")
			if err := o.media.Concat(ctx, clips, concatOut); err != nil {
				logger.Error().Err(err).Str("unit", unit).Msg("concat failed")
				failed = append(failed, unit)
				continue
			}
		}

		dst := withMP4Ext(concatOut)
		if util.NonEmptyFile(dst) {
			logger.Info().Str("unit", unit).Msg("delivery output already present, skipping transcode")
			continue
		}
		if err := o.transcodeWithRetry(ctx, logger, concatOut, dst, aspect); err != nil {
			logger.Error().Err(err).Str("unit", unit).Msg("unit failed delivery transcode")
			failed = append(failed, unit)
		}
	}

	loose, err := listMovFiles(clipsDir)
	if err != nil {
		return nil, err
	}
	for _, clip := range loose {
		dst := withMP4Ext(clip)
		if util.NonEmptyFile(dst) {
			logger.Debug().Str("clip", filepath.Base(clip)).Msg("delivery output already present, skipping transcode")
			continue
		}
		if err := o.transcodeWithRetry(ctx, logger, clip, dst, aspect); err != nil {
			logger.Error().Err(err).Str("clip", filepath.Base(clip)).Msg("loose clip failed delivery transcode")
			failed = append(failed, filepath.Base(clip))
		}
	}

	return failed, nil
}

// runDeliveryPass is the CONCATENATED stage: sweep every concatenated
// final and remaining loose clip and transcode any that still lacks a
// valid delivery output. Files already carrying a non-empty .mp4 are
// skipped, which is what makes the stage safe to re-run.
func (o *Orchestrator) runDeliveryPass(ctx context.Context, logger zerolog.Logger, clipsDir string, aspect ffmpeg.Geometry) ([]string, error) {
	var sources []string

	finals, err := filepath.Glob(filepath.Join(clipsDir, "*", "finals", "*.mov"))
	if err != nil {
		return nil, err
	}
	sources = append(sources, finals...)

	loose, err := listMovFiles(clipsDir)
	if err != nil {
		return nil, err
	}
	sources = append(sources, loose...)

	var failed []string
	for _, src := range sources {
		dst := withMP4Ext(src)
		if util.NonEmptyFile(dst) {
			logger.Debug().Str("output", filepath.Base(dst)).Msg("delivery output already present, skipping")
			continue
		}
		if err := o.transcodeWithRetry(ctx, logger, src, dst, aspect); err != nil {
			logger.Error().Err(err).Str("source", filepath.Base(src)).Msg("delivery transcode failed")
			failed = append(failed, filepath.Base(src))
		}
	}

	return failed, nil
}

// transcodeWithRetry wraps one delivery transcode in the bounded retry
// combinator: success means a zero exit and a non-empty output file.
func (o *Orchestrator) transcodeWithRetry(ctx context.Context, logger zerolog.Logger, src, dst string, aspect ffmpeg.Geometry) error {
	op := func() error {
		return o.media.Transcode(ctx, ffmpeg.TranscodeOptions{
			Input:        src,
			Output:       dst,
			Geometry:     aspect,
			CRF:          o.cfg.FFmpeg.CRF,
			Preset:       o.cfg.FFmpeg.Preset,
			AudioBitrate: o.cfg.FFmpeg.AudioBitrate,
			ProgressFunc: func(p *ffmpeg.Progress) {
				logger.Debug().
					Str("target", filepath.Base(dst)).
					Dur("out_time", p.OutTime).
					Str("speed", p.Speed).
					Msg("transcode progress")
			},
		})
	}
	validate := func() error {
		if !util.NonEmptyFile(dst) {
			return fmt.Errorf("delivery output %s missing or empty", dst)
		}
		return nil
	}
	return retry(ctx, logger, o.cfg.Retry.TranscodeAttempts, "delivery transcode", dst, op, validate)
}

// deliverBack is the PLEX_DONE stage: partition outputs beside the
// original input into an Archive group (lossless .mov) and a Plex group
// (delivery .mp4), verify every expected delivery output, and only then
// delete the scratch tree. Verification failure leaves scratch intact.
func (o *Orchestrator) deliverBack(logger zerolog.Logger, input, workDir, clipsDir, stem string) error {
	destRoot := filepath.Join(filepath.Dir(input), stem)
	archiveDir := filepath.Join(destRoot, "Archive")
	plexDir := filepath.Join(destRoot, "Plex")

	var archives []string
	loose, err := listMovFiles(clipsDir)
	if err != nil {
		return err
	}
	archives = append(archives, loose...)

	finals, err := filepath.Glob(filepath.Join(clipsDir, "*", "finals", "*.mov"))
	if err != nil {
		return err
	}
	sort.Strings(finals)
	archives = append(archives, finals...)

	if len(archives) == 0 {
		return fmt.Errorf("no finalized outputs found under %s, leaving scratch tree intact", clipsDir)
	}

	// The expected delivery set is derived from the archive list, not
	// from globbing .mp4 files: an absent render must fail verification,
	// not silently shrink the set.
	for _, m := range archives {
		if !util.NonEmptyFile(withMP4Ext(m)) {
			return fmt.Errorf("missing or empty delivery output %s, leaving scratch tree intact", withMP4Ext(m))
		}
	}

	type transfer struct{ src, dst string }
	var transfers []transfer
	var deliveries []string
	for _, m := range archives {
		transfers = append(transfers, transfer{src: m, dst: filepath.Join(archiveDir, filepath.Base(m))})

		render := withMP4Ext(m)
		dst := filepath.Join(plexDir, filepath.Base(render))
		transfers = append(transfers, transfer{src: render, dst: dst})
		deliveries = append(deliveries, dst)
	}

	logger.Info().
		Int("files", len(transfers)).
		Str("dest", destRoot).
		Msg("moving finalized outputs back to input location")

	for _, t := range transfers {
		if err := util.EnsureDir(filepath.Dir(t.dst)); err != nil {
			return err
		}
		if err := util.CopyFile(t.src, t.dst, nil); err != nil {
			return fmt.Errorf("failed to copy %s: %w", t.src, err)
		}
		logger.Debug().Str("src", t.src).Str("dst", t.dst).Msg("copied output")
	}

	// Cleanup never runs on unverified state.
	for _, d := range deliveries {
		if !util.NonEmptyFile(d) {
			return fmt.Errorf("missing or empty delivery output %s, leaving scratch tree intact", d)
		}
	}

	logger.Info().Str("work_dir", workDir).Msg("verification passed, cleaning up scratch tree")
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("failed to remove scratch tree: %w", err)
	}
	return nil
}

// listMovFiles returns the .mov files directly inside dir, name-sorted.
func listMovFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".mov") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func withMP4Ext(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".mp4"
}
