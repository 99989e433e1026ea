package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/uav-shift/backend/internal/geotag"
	"github.com/uav-shift/backend/internal/logging"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/parser"
)

// Track backends accepted in Options.TrackBackend.
const (
	TrackBackendAuto   = "auto"
	TrackBackendMemory = "memory"
	TrackBackendDuckDB = "duckdb"
)

// Gap limits in minutes.
const (
	MinGapMinutes     = 1
	MaxGapMinutes     = 120
	DefaultGapMinutes = 20
)

// Options configures a Session.
type Options struct {
	MaxGapMinutes int
	// SortCorrections sorts correction entries on load instead of rejecting
	// unsorted files.
	SortCorrections bool
	TrackBackend    string
	// DuckDBFixThreshold is the fix count at which the auto backend moves a
	// track into DuckDB.
	DuckDBFixThreshold int
	TempDir            string
	Duck               parser.DuckOptions
	Logger             *log.Logger
}

// DefaultOptions returns in-memory defaults suitable for the CLI and tests.
func DefaultOptions() Options {
	return Options{
		MaxGapMinutes:      DefaultGapMinutes,
		TrackBackend:       TrackBackendAuto,
		DuckDBFixThreshold: 500000,
		TempDir:            os.TempDir(),
		Duck:               parser.DefaultDuckOptions(),
	}
}

// ValidateGap rejects gap thresholds outside 1-120 minutes.
func ValidateGap(minutes int) error {
	if minutes < MinGapMinutes || minutes > MaxGapMinutes {
		return fmt.Errorf("%w: %d minutes (allowed %d-%d)", models.ErrInvalidGap, minutes, MinGapMinutes, MaxGapMinutes)
	}
	return nil
}

// Session holds everything loaded for one survey: images, their flight sets,
// correction entries, a PPK track and the last interpolation result. Sets
// carry correction overlays; loading images or changing the gap rebuilds the
// sets, drops manual overlays and re-runs automatic matching.
//
// All methods are safe for concurrent use.
type Session struct {
	id        string
	opts      Options
	log       *log.Logger
	createdAt time.Time

	mu     sync.RWMutex
	maxGap int

	images     []models.ImageRecord
	imageDiags []models.Diagnostic
	segments   []models.FlightSet // without overlays
	segDiags   []models.Diagnostic
	sets       []models.FlightSet // segments with overlays applied

	corrections     []models.CorrectionEntry
	correctionDiags []models.Diagnostic
	match           *geotag.MatchResult
	manual          map[int]models.Delta

	track    geotag.FixIndex
	trackSeq int
	ppkDiags []models.Diagnostic
	interp   *geotag.InterpolationResult

	running bool
	closed  bool
}

// New creates an empty session.
func New(id string, opts Options) *Session {
	if opts.MaxGapMinutes == 0 {
		opts.MaxGapMinutes = DefaultGapMinutes
	}
	if opts.TrackBackend == "" {
		opts.TrackBackend = TrackBackendAuto
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard("session")
	}
	return &Session{
		id:        id,
		opts:      opts,
		log:       logger,
		createdAt: time.Now(),
		maxGap:    opts.MaxGapMinutes,
		manual:    make(map[int]models.Delta),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// LoadImages replaces the session's images and rebuilds the flight sets.
// diags are the per-image problems found while reading the source. Any
// previous interpolation result is dropped.
func (s *Session) LoadImages(images []models.ImageRecord, diags []models.Diagnostic) ([]models.SetSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, fmt.Errorf("%w: cannot replace images during interpolation", models.ErrRunInProgress)
	}
	s.images = append([]models.ImageRecord(nil), images...)
	s.imageDiags = append([]models.Diagnostic(nil), diags...)
	s.resegmentLocked()

	s.log.Infof("%s: loaded %d images into %d sets (%d diagnostics)", shortID(s.id), len(images), len(s.sets), len(diags)+len(s.segDiags))
	return summaries(s.sets), nil
}

// LoadImagesFromManifest reads an exiftool-style CSV manifest.
func (s *Session) LoadImagesFromManifest(path string) ([]models.SetSummary, error) {
	images, diags, err := parser.NewManifestParser().ParseFile(path)
	if err != nil {
		return nil, err
	}
	return s.LoadImages(images, diags)
}

// DirScanner reads image records from a folder.
type DirScanner interface {
	ScanDir(ctx context.Context, root string) ([]models.ImageRecord, []models.Diagnostic, error)
}

// LoadImagesFromDir scans a folder for images and reads their EXIF data.
func (s *Session) LoadImagesFromDir(ctx context.Context, scanner DirScanner, dir string) ([]models.SetSummary, error) {
	images, diags, err := scanner.ScanDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	return s.LoadImages(images, diags)
}

// SetMaxGap changes the gap threshold and rebuilds the flight sets.
func (s *Session) SetMaxGap(minutes int) ([]models.SetSummary, error) {
	if err := ValidateGap(minutes); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, fmt.Errorf("%w: cannot regroup sets during interpolation", models.ErrRunInProgress)
	}
	s.maxGap = minutes
	s.resegmentLocked()
	return summaries(s.sets), nil
}

// MaxGap returns the current gap threshold in minutes.
func (s *Session) MaxGap() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxGap
}

func (s *Session) resegmentLocked() {
	s.segments, s.segDiags = geotag.Segment(s.images, time.Duration(s.maxGap)*time.Minute)
	s.manual = make(map[int]models.Delta)
	s.match = nil
	s.interp = nil
	if len(s.corrections) > 0 {
		// corrections were validated on load, so Match cannot fail here
		if res, err := geotag.Match(s.segments, s.corrections); err == nil {
			s.match = res
		} else {
			s.log.Warnf("%s: re-match failed: %v", shortID(s.id), err)
		}
	}
	s.applyOverlaysLocked()
}

func (s *Session) applyOverlaysLocked() {
	sets := s.segments
	if s.match != nil {
		sets = s.match.Apply(sets)
	} else {
		sets = append([]models.FlightSet(nil), sets...)
	}
	for i, d := range s.manual {
		if i < 0 || i >= len(sets) {
			continue
		}
		delta := d
		sets[i].Correction = &delta
		sets[i].CorrectionSource = models.CorrectionSourceManual
	}
	s.sets = sets
}

// LoadCorrections stores correction entries and matches them against the
// current sets. Unsorted entries are rejected unless the session sorts them.
// On error the previously loaded corrections are kept.
func (s *Session) LoadCorrections(entries []models.CorrectionEntry, diags []models.Diagnostic) (*geotag.MatchResult, error) {
	if s.opts.SortCorrections {
		entries = geotag.SortCorrections(entries)
	} else if err := geotag.ValidateSorted(entries); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := geotag.Match(s.segments, entries)
	if err != nil {
		return nil, err
	}

	s.corrections = append([]models.CorrectionEntry(nil), entries...)
	s.correctionDiags = append([]models.Diagnostic(nil), diags...)
	s.match = res
	s.manual = make(map[int]models.Delta)
	s.applyOverlaysLocked()

	s.log.Infof("%s: matched %d of %d sets from %d corrections", shortID(s.id), res.Matched(), len(s.segments), len(entries))
	if len(res.UnusedIDs) > 0 {
		s.log.Warnf("%s: unused corrections: %v", shortID(s.id), res.UnusedIDs)
	}
	return res, nil
}

// LoadCorrectionsFile parses and loads a correction CSV.
func (s *Session) LoadCorrectionsFile(path string) (*geotag.MatchResult, error) {
	entries, diags, err := parser.NewCorrectionParser().ParseFile(path)
	if err != nil {
		return nil, err
	}
	return s.LoadCorrections(entries, diags)
}

// SetCorrection attaches a manual delta to the set at a 0-based index,
// replacing any automatic or earlier manual correction.
func (s *Session) SetCorrection(index int, d models.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.segments) {
		return fmt.Errorf("%w: index %d (have %d sets)", models.ErrSetNotFound, index, len(s.segments))
	}
	s.manual[index] = d
	s.applyOverlaysLocked()
	return nil
}

// ApplyOverrides attaches every override in o. Set numbers are 1-based.
// Nothing is applied when any set number is out of range.
func (s *Session) ApplyOverrides(o *models.Overrides) error {
	if o == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ov := range o.Sets {
		if ov.Set < 1 || ov.Set > len(s.segments) {
			return fmt.Errorf("%w: set %d (have %d sets)", models.ErrSetNotFound, ov.Set, len(s.segments))
		}
	}
	for _, ov := range o.Sets {
		s.manual[ov.Set-1] = ov.Delta
	}
	s.applyOverlaysLocked()
	return nil
}

// LoadPPK builds a track from fixes, replacing any previous track and
// interpolation result.
func (s *Session) LoadPPK(fixes []models.PPKFix, diags []models.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("%w: cannot replace the track during interpolation", models.ErrRunInProgress)
	}

	track, err := s.buildTrackLocked(fixes)
	if err != nil {
		return err
	}
	s.closeTrackLocked()
	s.track = track
	s.ppkDiags = append([]models.Diagnostic(nil), diags...)
	s.interp = nil

	s.log.Infof("%s: loaded %d PPK fixes (%T)", shortID(s.id), track.Len(), track)
	return nil
}

// LoadPPKFiles parses one or more PPK logs and merges them into one track.
func (s *Session) LoadPPKFiles(paths ...string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no PPK files", models.ErrMissingInput)
	}
	p := parser.NewPPKParser()
	logs := make([][]models.PPKFix, 0, len(paths))
	var diags []models.Diagnostic
	for _, path := range paths {
		fixes, d, err := p.ParseFile(path)
		if err != nil {
			return err
		}
		logs = append(logs, fixes)
		diags = append(diags, d...)
	}
	fixes := logs[0]
	if len(logs) > 1 {
		fixes = parser.MergeFixes(logs, parser.DefaultMergeConfig())
	}
	return s.LoadPPK(fixes, diags)
}

func (s *Session) buildTrackLocked(fixes []models.PPKFix) (geotag.FixIndex, error) {
	useDuck := false
	switch s.opts.TrackBackend {
	case TrackBackendDuckDB:
		useDuck = true
	case TrackBackendAuto:
		useDuck = s.opts.DuckDBFixThreshold > 0 && len(fixes) >= s.opts.DuckDBFixThreshold
	}
	if !useDuck {
		return geotag.NewTrack(fixes), nil
	}

	if err := os.MkdirAll(s.opts.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", models.ErrIOFailure, err)
	}
	s.trackSeq++
	opts := s.opts.Duck
	if opts.Logger == nil {
		opts.Logger = s.log
	}
	dt, err := parser.NewDuckTrack(s.opts.TempDir, fmt.Sprintf("%s_%d", shortID(s.id), s.trackSeq), opts)
	if err != nil {
		return nil, err
	}
	if err := dt.AddAll(fixes); err != nil {
		dt.Close()
		return nil, err
	}
	return dt, nil
}

func (s *Session) closeTrackLocked() {
	if c, ok := s.track.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.log.Warnf("%s: close track: %v", shortID(s.id), err)
		}
	}
	s.track = nil
}

// Interpolate resolves PPK positions for the images of the selected sets
// (nil means all). Only a run that finishes is kept for export; a cancelled
// run returns its partial result and leaves the previous one in place.
func (s *Session) Interpolate(ctx context.Context, selected []int, onProgress geotag.ProgressCallback) (*geotag.InterpolationResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, models.ErrRunInProgress
	}
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session closed", models.ErrMissingInput)
	}
	if s.track == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no PPK track loaded", models.ErrMissingInput)
	}
	images, err := geotag.SetImages(s.sets, selected)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	track := s.track
	s.running = true
	s.mu.Unlock()

	result, err := geotag.Interpolate(ctx, images, track, onProgress)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.closed {
		s.closeTrackLocked()
	}
	if err != nil {
		return nil, err
	}
	if !result.Cancelled {
		s.interp = result
	}
	return result, nil
}

// Positions returns the export rows for a correction mode. In delta mode
// selected picks the sets (nil means all); in PPK mode the rows of the last
// completed interpolation are returned and selected is ignored.
func (s *Session) Positions(mode models.CorrectionMode, selected []int) ([]models.ResolvedPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch mode {
	case models.ModeDelta:
		if len(s.sets) == 0 {
			return nil, fmt.Errorf("%w: no images loaded", models.ErrMissingInput)
		}
		return geotag.ComposeCorrected(s.sets, selected)
	case models.ModePPK:
		if s.interp == nil {
			return nil, fmt.Errorf("%w: no completed PPK interpolation", models.ErrMissingInput)
		}
		return geotag.ComposeInterpolated(s.interp), nil
	}
	return nil, fmt.Errorf("unknown correction mode %q", mode)
}

// Sets returns a copy of the current flight sets with their overlays.
func (s *Session) Sets() []models.FlightSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FlightSet(nil), s.sets...)
}

// SetSummaries returns the tabular view of the current sets.
func (s *Session) SetSummaries() []models.SetSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summaries(s.sets)
}

// Summary describes what the session holds.
func (s *Session) Summary() models.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := models.SessionInfo{
		ID:              s.id,
		MaxGapMinutes:   s.maxGap,
		ImageCount:      len(s.images),
		SetCount:        len(s.sets),
		CorrectionCount: len(s.corrections),
		PositionsReady:  s.interp != nil,
		DiagnosticCount: len(s.diagnosticsLocked()),
		Sets:            summaries(s.sets),
		CreatedAt:       s.createdAt,
	}
	if s.match != nil {
		info.UnusedCorrections = append([]string(nil), s.match.UnusedIDs...)
	}
	if s.track != nil {
		info.FixCount = s.track.Len()
		if first, last, ok := s.track.Span(); ok {
			info.TrackRange = &models.TimeRange{Start: first, End: last}
		}
	}
	if first, last, ok := geotag.ImageSpan(s.images); ok {
		info.ImageRange = &models.TimeRange{Start: first, End: last}
	}
	return info
}

// Diagnostics returns every skipped record and warning in load order.
func (s *Session) Diagnostics() []models.Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diagnosticsLocked()
}

func (s *Session) diagnosticsLocked() []models.Diagnostic {
	out := make([]models.Diagnostic, 0)
	out = append(out, s.imageDiags...)
	out = append(out, s.segDiags...)
	out = append(out, s.correctionDiags...)
	if s.match != nil {
		out = append(out, s.match.Diagnostics...)
	}
	out = append(out, s.ppkDiags...)
	if s.interp != nil {
		out = append(out, s.interp.Diagnostics...)
	}
	return out
}

// Reset drops all loaded data, keeping the gap threshold.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return models.ErrRunInProgress
	}
	s.closeTrackLocked()
	s.images, s.imageDiags = nil, nil
	s.segments, s.segDiags, s.sets = nil, nil, nil
	s.corrections, s.correctionDiags, s.match = nil, nil, nil
	s.manual = make(map[int]models.Delta)
	s.ppkDiags, s.interp = nil, nil
	s.log.Infof("%s: reset", shortID(s.id))
	return nil
}

// Close releases the track. A running interpolation keeps the track until it
// returns.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if !s.running {
		s.closeTrackLocked()
	}
	return nil
}

func summaries(sets []models.FlightSet) []models.SetSummary {
	out := make([]models.SetSummary, len(sets))
	for i, set := range sets {
		out[i] = set.Summary()
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
