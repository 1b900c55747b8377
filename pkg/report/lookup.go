package report

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/sca-tools/bdreport/pkg/types"
)

// MatchedFileFinder resolves the source file paths matched to a component
// origin. Implementations must not fail: lookup problems degrade to an empty
// result so row processing always continues.
type MatchedFileFinder interface {
	MatchedFilePaths(ctx context.Context, projectID, versionID, componentID, componentVersionID, originID string) []string
}

// VulnerabilityResolver resolves remediation guidance for a vulnerability id.
// Implementations must not fail: lookup problems degrade to an empty detail.
type VulnerabilityResolver interface {
	Resolve(ctx context.Context, vulnerabilityID string) types.VulnerabilityDetail
}

// JSONGetter is the subset of the hub client the lookups need.
type JSONGetter interface {
	GetJSON(ctx context.Context, rawURL string, out any) error
	BaseURL() string
}

// HubLookup implements both auxiliary lookups against the hub API.
type HubLookup struct {
	client JSONGetter
	logger types.Logger
}

// NewHubLookup creates a HubLookup.
func NewHubLookup(client JSONGetter, logger types.Logger) *HubLookup {
	return &HubLookup{client: client, logger: logger}
}

// MatchedFilePaths fetches the matched-files resource addressed by all five
// identifiers and extracts the composite path context of each item, skipping
// items without one. Any failure is logged and yields an empty result.
func (l *HubLookup) MatchedFilePaths(
	ctx context.Context, projectID, versionID, componentID, componentVersionID, originID string,
) []string {
	reqURL := fmt.Sprintf("%s/api/projects/%s/versions/%s/components/%s/versions/%s/origins/%s/matched-files",
		l.client.BaseURL(),
		url.PathEscape(projectID), url.PathEscape(versionID),
		url.PathEscape(componentID), url.PathEscape(componentVersionID), url.PathEscape(originID))

	var payload types.MatchedFilesPayload
	if err := l.client.GetJSON(ctx, reqURL, &payload); err != nil {
		l.logger.Error("matched-files lookup failed",
			zap.String("componentID", componentID),
			zap.String("componentVersionID", componentVersionID),
			zap.String("originID", originID),
			zap.Error(err))
		return nil
	}

	var paths []string
	for _, item := range payload.Items {
		if p := item.FilePath.CompositePathContext; p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Resolve fetches the vulnerability resource and returns its solution text
// and reference links, with missing fields defaulting to empty values. Any
// failure is logged and yields an empty detail.
func (l *HubLookup) Resolve(ctx context.Context, vulnerabilityID string) types.VulnerabilityDetail {
	reqURL := l.client.BaseURL() + "/api/vulnerabilities/" + url.PathEscape(vulnerabilityID)

	var payload types.VulnerabilityPayload
	if err := l.client.GetJSON(ctx, reqURL, &payload); err != nil {
		l.logger.Error("vulnerability lookup failed",
			zap.String("vulnerabilityID", vulnerabilityID),
			zap.Error(err))
		return types.VulnerabilityDetail{References: []types.ReferenceLink{}}
	}

	refs := make([]types.ReferenceLink, 0, len(payload.Meta.Links))
	refs = append(refs, payload.Meta.Links...)
	return types.VulnerabilityDetail{Solution: payload.Solution, References: refs}
}
