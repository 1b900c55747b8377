package report

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sca-tools/bdreport/pkg/types"
)

// JobCreator is the subset of the hub client the requester needs.
type JobCreator interface {
	CreateReport(ctx context.Context, versionID string, categories []string, format string) (string, error)
}

// Requester asks the server to start report generation for a project version.
type Requester struct {
	client JobCreator
	logger types.Logger
}

// NewRequester creates a Requester.
func NewRequester(client JobCreator, logger types.Logger) *Requester {
	return &Requester{client: client, logger: logger}
}

// Request submits a validated ReportRequest and returns the created job.
// Job-creation failure is terminal for the run: a non-success status means a
// bad request or a permission problem, not a transient condition, so there
// is no retry at this layer.
func (r *Requester) Request(ctx context.Context, req *types.ReportRequest) (*types.ReportJob, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("report request carries no categories")
	}

	location, err := r.client.CreateReport(ctx, req.VersionID, req.Categories, req.Format)
	if err != nil {
		return nil, fmt.Errorf("error creating report job: %w", err)
	}

	r.logger.Info("report job created",
		zap.String("versionID", req.VersionID),
		zap.String("location", location))

	return &types.ReportJob{Location: location, CreatedAt: time.Now()}, nil
}
