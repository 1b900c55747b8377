package types

import (
	"strings"
	"time"
)

// ReportRequest describes one server-side report generation job.
// It is immutable once constructed; Categories must already be validated
// against the known report-kind vocabulary.
type ReportRequest struct {
	ProjectID  string
	VersionID  string
	Categories []string
	Format     string
}

// ReportJob is the server's reference to a created report job.
// The Location is an opaque URL returned in the creation response header and
// is consumed exactly once by the downloader.
type ReportJob struct {
	CreatedAt time.Time
	Location  string
}

// ReferenceLink is one remediation reference attached to a vulnerability.
type ReferenceLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// VulnerabilityDetail is the remediation guidance resolved for one vulnerability id.
// Missing payload fields default to empty values rather than being distinguished
// from present-but-empty ones.
type VulnerabilityDetail struct {
	Solution   string
	References []ReferenceLink
}

// MatchedFilesPayload mirrors the vendor's matched-files response.
type MatchedFilesPayload struct {
	Items []MatchedFileItem `json:"items"`
}

// MatchedFileItem is one matched source file for a component origin.
type MatchedFileItem struct {
	FilePath MatchedFilePath `json:"filePath"`
}

// MatchedFilePath holds the composite path context of a matched file.
type MatchedFilePath struct {
	CompositePathContext string `json:"compositePathContext"`
}

// VulnerabilityPayload mirrors the vendor's vulnerability-detail response.
type VulnerabilityPayload struct {
	Solution string `json:"solution"`
	Meta     Meta   `json:"_meta"`
}

// Meta is the vendor's standard resource metadata envelope.
type Meta struct {
	Href  string          `json:"href"`
	Links []ReferenceLink `json:"links"`
}

// Link returns the href of the first link with the given rel, or "" if absent.
func (m Meta) Link(rel string) string {
	for _, l := range m.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}

// ResourceID returns the final path segment of the resource href.
// The vendor addresses resources by opaque ids embedded in URLs, so this is
// how project, version and report ids are derived.
func (m Meta) ResourceID() string {
	href := strings.TrimRight(m.Href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		return href[i+1:]
	}
	return href
}

// Project is a named project as returned by the project listing endpoint.
type Project struct {
	Name string `json:"name"`
	Meta Meta   `json:"_meta"`
}

// ProjectVersion is one version of a project.
type ProjectVersion struct {
	VersionName string `json:"versionName"`
	Meta        Meta   `json:"_meta"`
}

// ItemsPage is the vendor's standard paged collection envelope.
type ItemsPage[T any] struct {
	TotalCount int `json:"totalCount"`
	Items      []T `json:"items"`
}

// CurrentUser is the authenticated user returned by the whoami endpoint.
type CurrentUser struct {
	UserName string `json:"userName"`
	Type     string `json:"type"`
}
