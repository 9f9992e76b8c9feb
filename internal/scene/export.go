package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kylev/reelsweep/pkg/util"
)

// Audit files are diagnostics for the operator and the manual sorting
// step. The pipeline never reads them back.

type sceneRecord struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type boundaryReport struct {
	VideoFile   string           `json:"video_file"`
	Duration    string           `json:"duration"`
	Threshold   float64          `json:"threshold"`
	TotalScenes int              `json:"total_scenes"`
	Scenes      []boundaryRecord `json:"scenes"`
}

type boundaryRecord struct {
	SceneNumber int    `json:"scene_number"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// ExportScenes writes the segment list as JSON with human-readable
// ISO 8601 duration strings.
func ExportScenes(dir, stem string, segments []Segment) (string, error) {
	if err := util.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create analysis dir: %w", err)
	}

	records := make([]sceneRecord, len(segments))
	for i, s := range segments {
		records[i] = sceneRecord{
			Start: util.FormatISO8601(s.Start),
			End:   util.FormatISO8601(s.End),
		}
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, stem+"_scenes.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write scene list: %w", err)
	}
	return path, nil
}

// ExportDissimilarities writes the per-boundary dissimilarity report as
// a time_sec,diff CSV.
func ExportDissimilarities(dir, stem string, candidates []Candidate) (string, error) {
	if err := util.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create analysis dir: %w", err)
	}

	var b strings.Builder
	b.WriteString("time_sec,diff\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "%.3f,%.6f\n", c.Time.Seconds(), c.Score)
	}

	path := filepath.Join(dir, stem+"_diffs.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write dissimilarity report: %w", err)
	}
	return path, nil
}

// ExportDiagnosticBoundaries writes the dense low-threshold boundary
// list, converting boundaries to back-to-back ranges over the duration.
func ExportDiagnosticBoundaries(dir, stem, input string, threshold float64, boundaries []Candidate, total time.Duration) (string, error) {
	if err := util.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("failed to create analysis dir: %w", err)
	}

	report := boundaryReport{
		VideoFile: input,
		Duration:  fmt.Sprintf("%.3f", total.Seconds()),
		Threshold: threshold,
	}

	prev := time.Duration(0)
	for i, c := range boundaries {
		report.Scenes = append(report.Scenes, boundaryRecord{
			SceneNumber: i + 1,
			StartTime:   fmt.Sprintf("%.3f", prev.Seconds()),
			EndTime:     fmt.Sprintf("%.3f", c.Time.Seconds()),
		})
		prev = c.Time
	}
	report.Scenes = append(report.Scenes, boundaryRecord{
		SceneNumber: len(boundaries) + 1,
		StartTime:   fmt.Sprintf("%.3f", prev.Seconds()),
		EndTime:     fmt.Sprintf("%.3f", total.Seconds()),
	})
	report.TotalScenes = len(report.Scenes)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, stem+"_boundaries_low.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write diagnostic boundaries: %w", err)
	}
	return path, nil
}
