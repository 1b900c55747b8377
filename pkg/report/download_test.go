package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sca-tools/bdreport/pkg/types"
)

// scriptedFetcher returns one canned result per call, in order.
type scriptedFetcher struct {
	t       *testing.T
	results []fetchResult
	calls   int
}

type fetchResult struct {
	err  error
	data []byte
}

func (f *scriptedFetcher) DownloadReport(_ context.Context, _ string) ([]byte, error) {
	require.Less(f.t, f.calls, len(f.results), "more download attempts than scripted results")
	r := f.results[f.calls]
	f.calls++
	return r.data, r.err
}

func newTestDownloader(fetcher ReportFetcher) (*Downloader, *[]time.Duration) {
	d := NewDownloader(fetcher, &types.MockLogger{})
	sleeps := &[]time.Duration{}
	d.sleep = func(dur time.Duration) { *sleeps = append(*sleeps, dur) }
	return d, sleeps
}

func TestReportID(t *testing.T) {
	assert.Equal(t, "12345", ReportID("https://hub.example.com/api/reports/12345"))
	assert.Equal(t, "12345", ReportID("https://hub.example.com/api/reports/12345/"))
	assert.Equal(t, "12345", ReportID("12345"))
}

func TestDownloadSucceedsAfterRetries(t *testing.T) {
	fetcher := &scriptedFetcher{t: t, results: []fetchResult{
		{err: errors.New("status 412")},
		{err: errors.New("status 412")},
		{data: []byte("zip-bytes")},
	}}

	d, sleeps := newTestDownloader(fetcher)
	out := filepath.Join(t.TempDir(), "report.zip")

	data, attempts, err := d.Download(context.Background(), &types.ReportJob{Location: "https://h/api/reports/r1"}, out)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), data)
	assert.Equal(t, 3, attempts)

	// One warm-up sleep plus one sleep after each of the two failed attempts.
	assert.Equal(t, []time.Duration{DefaultInitialWait, DefaultSleep, DefaultSleep}, *sleeps)

	persisted, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), persisted)
}

func TestDownloadExhaustsRetryBudget(t *testing.T) {
	fetcher := &scriptedFetcher{t: t, results: []fetchResult{
		{err: errors.New("status 412")},
		{err: errors.New("status 412")},
		{err: errors.New("status 412")},
	}}

	d, sleeps := newTestDownloader(fetcher)
	d.Tries = 3

	_, attempts, err := d.Download(context.Background(), &types.ReportJob{Location: "https://h/api/reports/r2"}, "")
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, fetcher.calls, "should attempt exactly Tries times")

	var exhausted *DownloadExhaustedError
	require.ErrorAs(t, err, &exhausted, "exhaustion must be a typed error")
	assert.Equal(t, "r2", exhausted.ReportID)
	assert.Equal(t, 3, exhausted.Attempts)

	// Warm-up sleep plus (Tries - 1) inter-attempt sleeps; no sleep after the
	// final attempt.
	assert.Len(t, *sleeps, 3)
}

func TestDownloadFirstAttemptSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{t: t, results: []fetchResult{{data: []byte("ok")}}}

	d, sleeps := newTestDownloader(fetcher)

	data, attempts, err := d.Download(context.Background(), &types.ReportJob{Location: "r3"}, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, []time.Duration{DefaultInitialWait}, *sleeps, "only the warm-up sleep")
}
