package journeylog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/dbpranger/delay-api/models"
)

// maxLineBytes bounds a single JSONL record. One batch holds every journey of
// a grid tile, so lines can be large.
const maxLineBytes = 64 * 1024 * 1024

// ErrNothingLoaded is reported when log files were found but none could be read
var ErrNothingLoaded = errors.New("no log file could be loaded")

// FileReport records the outcome of reading one log file
type FileReport struct {
	Path         string
	Records      int
	LinesSkipped int
	Err          error
}

// LoadReport summarises a directory load
type LoadReport struct {
	Files        []FileReport
	FilesLoaded  int
	FilesFailed  int
	LinesSkipped int
	// Err is set when the directory could not be listed or every file failed.
	Err error
}

// Errors returns the per-file and directory errors as strings
func (r LoadReport) Errors() []string {
	var out []string
	if r.Err != nil {
		out = append(out, r.Err.Error())
	}
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, fmt.Sprintf("%s: %v", filepath.Base(f.Path), f.Err))
		}
	}
	return out
}

// LoadDir reads every transport log in dir matching pattern and flattens it.
// Files whose base name matches exclude are skipped (weather logs usually
// live in the same directory). Files are read in lexical order so row IDs
// are stable across restarts.
//
// A bad line is skipped; a file that cannot be opened or yields no valid
// record is reported as failed without aborting the load.
func LoadDir(dir, pattern, exclude string) ([]models.FlatRow, LoadReport) {
	var report LoadReport

	paths, err := listFiles(dir, pattern, exclude)
	if err != nil {
		report.Err = err
		return nil, report
	}

	var rows []models.FlatRow
	var nextID int64 = 1
	for _, path := range paths {
		fr := readJSONL(path, func(line []byte) error {
			var batch IngestionBatch
			if err := json.Unmarshal(line, &batch); err != nil {
				return err
			}
			rows = appendBatch(rows, batch, &nextID)
			return nil
		})
		report.add(fr)
	}

	if report.FilesLoaded == 0 && report.FilesFailed > 0 {
		report.Err = ErrNothingLoaded
		return nil, report
	}

	slog.Info("Transport logs loaded",
		"dir", dir,
		"files", report.FilesLoaded,
		"failed", report.FilesFailed,
		"skipped_lines", report.LinesSkipped,
		"rows", len(rows),
	)
	return rows, report
}

// LoadWeatherDir reads every weather observation log in dir matching pattern
func LoadWeatherDir(dir, pattern string) ([]models.WeatherObservation, LoadReport) {
	var report LoadReport

	paths, err := listFiles(dir, pattern, "")
	if err != nil {
		report.Err = err
		return nil, report
	}

	var observations []models.WeatherObservation
	for _, path := range paths {
		fr := readJSONL(path, func(line []byte) error {
			var obs models.WeatherObservation
			if err := json.Unmarshal(line, &obs); err != nil {
				return err
			}
			observations = append(observations, obs)
			return nil
		})
		report.add(fr)
	}

	if report.FilesLoaded == 0 && report.FilesFailed > 0 {
		report.Err = ErrNothingLoaded
		return nil, report
	}
	return observations, report
}

func (r *LoadReport) add(fr FileReport) {
	r.Files = append(r.Files, fr)
	r.LinesSkipped += fr.LinesSkipped
	if fr.Err != nil {
		r.FilesFailed++
		return
	}
	r.FilesLoaded++
}

func listFiles(dir, pattern, exclude string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data path is not a directory: %s", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		if exclude != "" {
			if skip, _ := filepath.Match(exclude, filepath.Base(m)); skip {
				continue
			}
		}
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			continue
		}
		paths = append(paths, m)
	}
	sort.Strings(paths)
	return paths, nil
}

// readJSONL feeds every non-blank line of path to decode.
// Lines that fail to decode are counted and skipped.
func readJSONL(path string, decode func(line []byte) error) FileReport {
	fr := FileReport{Path: path}

	f, err := os.Open(path)
	if err != nil {
		fr.Err = fmt.Errorf("failed to open log file: %w", err)
		slog.Warn("Skipping unreadable log file", "path", path, "error", err)
		return fr
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(trimSpace(line)) == 0 {
			continue
		}
		if err := decode(line); err != nil {
			fr.LinesSkipped++
			slog.Debug("Skipping malformed log line", "path", path, "line", lineNo, "error", err)
			continue
		}
		fr.Records++
	}

	if err := scanner.Err(); err != nil {
		fr.Err = fmt.Errorf("failed reading line %d: %w", lineNo+1, err)
		slog.Warn("Log file read stopped early", "path", path, "error", err)
		return fr
	}
	if fr.Records == 0 && fr.LinesSkipped > 0 {
		fr.Err = fmt.Errorf("no valid records (%d malformed lines)", fr.LinesSkipped)
		slog.Warn("Log file has no valid records", "path", path, "skipped", fr.LinesSkipped)
	} else if fr.LinesSkipped > 0 {
		slog.Warn("Skipped malformed log lines", "path", path, "skipped", fr.LinesSkipped)
	}
	return fr
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
