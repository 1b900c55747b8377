package report

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sca-tools/bdreport/pkg/types"
)

// NoFilePaths is the placeholder written when no matched file paths exist.
const NoFilePaths = "No file paths available"

// Input columns consumed and output columns produced by enrichment.
const (
	colComponentID        = "Component id"
	colComponentVersionID = "Version id"
	colOriginID           = "Origin id"
	colVulnerabilityID    = "Vulnerability id"

	colFilePaths  = "File Paths"
	colHowToFix   = "How to Fix"
	colReferences = "References and Related Links"
)

// FileStat summarizes the enrichment of one candidate entry.
type FileStat struct {
	Entry            string
	OutputEntry      string
	Rows             int
	SkippedFilePaths int
}

// Enricher augments the tabular files of a downloaded report archive with
// matched file paths and remediation guidance, appending the enhanced files
// as new entries of the destination archive on disk.
type Enricher struct {
	finder   MatchedFileFinder
	resolver VulnerabilityResolver
	logger   types.Logger
	progress io.Writer
	now      func() time.Time
	destPath string
}

// NewEnricher creates an Enricher writing enhanced entries to destPath.
func NewEnricher(finder MatchedFileFinder, resolver VulnerabilityResolver,
	logger types.Logger, destPath string) *Enricher {
	return &Enricher{
		finder:   finder,
		resolver: resolver,
		logger:   logger,
		progress: os.Stdout,
		now:      time.Now,
		destPath: destPath,
	}
}

// SetProgressWriter redirects per-row progress output, used by tests and by
// callers that want progress on stderr.
func (e *Enricher) SetProgressWriter(w io.Writer) { e.progress = w }

// SetClock overrides the timestamp source for the enhanced entry names.
func (e *Enricher) SetClock(now func() time.Time) { e.now = now }

// Enrich processes the archive for one {projectID, versionID} context.
// Candidate selection, per-row lookups and the append-only output contract
// are described on the helpers below. Failures inside one candidate entry
// are isolated; only destination-archive write errors fail the run.
func (e *Enricher) Enrich(ctx context.Context, archive []byte, projectID, versionID string) ([]FileStat, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("error opening report archive: %w", err)
	}

	candidates := e.selectCandidates(zr)

	// One timestamp per run so every enhanced file from this invocation
	// shares the same suffix.
	stamp := e.now().Format("20060102-150405")

	var stats []FileStat
	for _, f := range candidates {
		stat, data, err := e.enrichEntry(ctx, f, projectID, versionID, stamp)
		if err != nil {
			e.logger.Error("skipping report file",
				zap.String("entry", f.Name),
				zap.Error(err))
			continue
		}
		if err := AppendEntry(e.destPath, stat.OutputEntry, data); err != nil {
			return stats, fmt.Errorf("error appending enhanced entry %s: %w", stat.OutputEntry, err)
		}
		stats = append(stats, stat)
	}

	e.verifyDestination()
	return stats, nil
}

// selectCandidates picks the tabular entries to enrich: those whose name
// contains a security/vulnerability substring. When none match, every
// tabular entry becomes a candidate; that fallback is deliberate behavior,
// not an oversight, and is logged when it happens.
func (e *Enricher) selectCandidates(zr *zip.Reader) []*zip.File {
	var tabular, candidates []*zip.File
	for _, f := range zr.File {
		lower := strings.ToLower(f.Name)
		if !strings.HasSuffix(lower, ".csv") {
			continue
		}
		tabular = append(tabular, f)
		if strings.Contains(lower, "security") || strings.Contains(lower, "vulnerability") {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		e.logger.Info("no security report files found, treating all tabular entries as candidates",
			zap.Int("count", len(tabular)))
		return tabular
	}
	return candidates
}

func (e *Enricher) enrichEntry(ctx context.Context, f *zip.File,
	projectID, versionID, stamp string) (FileStat, []byte, error) {
	rc, err := f.Open()
	if err != nil {
		return FileStat{}, nil, fmt.Errorf("error opening entry: %w", err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close() //nolint:errcheck
	if err != nil {
		return FileStat{}, nil, fmt.Errorf("error reading entry: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return FileStat{}, nil, fmt.Errorf("error parsing CSV: %w", err)
	}
	if len(records) == 0 {
		return FileStat{}, nil, fmt.Errorf("entry contains no header row")
	}

	header := records[0]
	rows := records[1:]
	// A single parse yields the row count up front; the progress percentages
	// are identical to counting in a separate pass.
	total := len(rows)
	cols := newColumnIndex(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	outHeader := append(append([]string{}, header...), colFilePaths, colHowToFix, colReferences)
	if err := w.Write(outHeader); err != nil {
		return FileStat{}, nil, fmt.Errorf("error writing header: %w", err)
	}

	progress := NewProgress(e.progress, total)
	skipped := 0
	for i, row := range rows {
		progress.Row(i + 1)

		filePaths, rowSkipped := e.filePathsFor(ctx, cols, row, projectID, versionID)
		if rowSkipped {
			skipped++
		}
		howToFix, references := e.remediationFor(ctx, cols, row)

		out := append(append([]string{}, row...), filePaths, howToFix, references)
		if err := w.Write(out); err != nil {
			return FileStat{}, nil, fmt.Errorf("error writing row %d: %w", i+1, err)
		}
	}
	progress.Done()

	w.Flush()
	if err := w.Error(); err != nil {
		return FileStat{}, nil, fmt.Errorf("error flushing CSV: %w", err)
	}

	base := path.Base(f.Name)
	outputEntry := fmt.Sprintf("enhanced_%s_%s.csv", strings.TrimSuffix(base, path.Ext(base)), stamp)

	e.logger.Info("report file enriched",
		zap.String("entry", f.Name),
		zap.String("outputEntry", outputEntry),
		zap.Int("rows", total),
		zap.Int("rowsWithoutFilePathLookup", skipped))

	return FileStat{
		Entry:            f.Name,
		OutputEntry:      outputEntry,
		Rows:             total,
		SkippedFilePaths: skipped,
	}, buf.Bytes(), nil
}

// filePathsFor resolves the File Paths column for one row. The matched-files
// lookup runs only when the component, component-version and origin ids are
// all present; otherwise the row counts as skipped for summary logging.
func (e *Enricher) filePathsFor(ctx context.Context, cols columnIndex, row []string,
	projectID, versionID string) (string, bool) {
	componentID := cols.value(row, colComponentID)
	componentVersionID := cols.value(row, colComponentVersionID)
	originID := cols.value(row, colOriginID)

	if componentID == "" || componentVersionID == "" || originID == "" {
		return NoFilePaths, true
	}

	paths := e.finder.MatchedFilePaths(ctx, projectID, versionID, componentID, componentVersionID, originID)
	if len(paths) == 0 {
		return NoFilePaths, false
	}
	return strings.Join(paths, "; "), false
}

// remediationFor resolves the How to Fix and References columns for one row.
// The references serialize as a JSON array of {"rel","href"} objects, "[]"
// when empty.
func (e *Enricher) remediationFor(ctx context.Context, cols columnIndex, row []string) (string, string) {
	vulnerabilityID := cols.value(row, colVulnerabilityID)
	if vulnerabilityID == "" {
		return "", "[]"
	}

	detail := e.resolver.Resolve(ctx, vulnerabilityID)
	refs := detail.References
	if refs == nil {
		refs = []types.ReferenceLink{}
	}
	encoded, err := json.Marshal(refs)
	if err != nil {
		e.logger.Error("could not serialize reference links",
			zap.String("vulnerabilityID", vulnerabilityID),
			zap.Error(err))
		encoded = []byte("[]")
	}
	return detail.Solution, string(encoded)
}

// verifyDestination reopens the output archive and logs its entry list.
// Purely observational; it never fails the run.
func (e *Enricher) verifyDestination() {
	names, err := ListEntries(e.destPath)
	if err != nil {
		e.logger.Warn("could not verify output archive",
			zap.String("path", e.destPath),
			zap.Error(err))
		return
	}
	e.logger.Info("output archive verified",
		zap.String("path", e.destPath),
		zap.Strings("entries", names))
}

// columnIndex maps header names to their positions.
type columnIndex map[string]int

func newColumnIndex(header []string) columnIndex {
	cols := make(columnIndex, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	return cols
}

// value returns the trimmed cell of row under col, or "" when the column is
// absent or the row is short. Missing values degrade, they never error.
func (ci columnIndex) value(row []string, col string) string {
	i, ok := ci[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
