package report

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sca-tools/bdreport/pkg/types"
)

// Downloader defaults. Report generation is asynchronous server-side work
// with no push notification, so the downloader polls.
const (
	DefaultTries       = 5
	DefaultSleep       = 30 * time.Second
	DefaultInitialWait = 30 * time.Second
)

// ReportFetcher is the subset of the hub client the downloader needs.
type ReportFetcher interface {
	DownloadReport(ctx context.Context, reportID string) ([]byte, error)
}

// DownloadExhaustedError means the retry budget ran out before the server
// finished generating the report. This is a normal, expected terminal
// condition for large projects, distinguishable from transport errors.
type DownloadExhaustedError struct {
	ReportID string
	Attempts int
}

func (e *DownloadExhaustedError) Error() string {
	return fmt.Sprintf("report %s was not downloadable after %d attempts; the server may still be generating it",
		e.ReportID, e.Attempts)
}

// Downloader polls for a completed report artifact with bounded retries.
type Downloader struct {
	client      ReportFetcher
	logger      types.Logger
	sleep       func(time.Duration)
	Tries       int
	Sleep       time.Duration
	InitialWait time.Duration
}

// NewDownloader creates a Downloader with the default retry budget.
func NewDownloader(client ReportFetcher, logger types.Logger) *Downloader {
	return &Downloader{
		client:      client,
		logger:      logger,
		sleep:       time.Sleep,
		Tries:       DefaultTries,
		Sleep:       DefaultSleep,
		InitialWait: DefaultInitialWait,
	}
}

// ReportID derives the job id from a location reference, which the server
// returns as an opaque URL whose final path segment addresses the report.
func ReportID(location string) string {
	location = strings.TrimRight(location, "/")
	if i := strings.LastIndex(location, "/"); i >= 0 {
		return location[i+1:]
	}
	return location
}

// Download waits out the server's warm-up time, then polls for the artifact.
// On success the raw bytes are also persisted to outPath (when non-empty)
// and returned together with the number of attempts used. Exhausting the
// retry budget returns a DownloadExhaustedError.
func (d *Downloader) Download(ctx context.Context, job *types.ReportJob, outPath string) ([]byte, int, error) {
	reportID := ReportID(job.Location)

	d.logger.Info("waiting for report generation",
		zap.String("reportID", reportID),
		zap.Duration("initialWait", d.InitialWait))
	d.sleep(d.InitialWait)

	for attempt := 1; attempt <= d.Tries; attempt++ {
		data, err := d.client.DownloadReport(ctx, reportID)
		if err == nil {
			if outPath != "" {
				if werr := os.WriteFile(outPath, data, 0o644); werr != nil {
					return nil, attempt, fmt.Errorf("error persisting report archive to %s: %w", outPath, werr)
				}
			}
			d.logger.Info("report downloaded",
				zap.String("reportID", reportID),
				zap.Int("attempt", attempt),
				zap.Int("bytes", len(data)))
			return data, attempt, nil
		}

		d.logger.Info("report not ready",
			zap.String("reportID", reportID),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", d.Tries),
			zap.Error(err))

		if attempt < d.Tries {
			d.sleep(d.Sleep)
		}
	}

	return nil, d.Tries, &DownloadExhaustedError{ReportID: reportID, Attempts: d.Tries}
}
