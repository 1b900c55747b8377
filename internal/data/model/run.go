package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportRun records one report generation and enrichment invocation.
type ReportRun struct {
	ID            uint            `json:"ID" gorm:"primaryKey;autoIncrement"`
	CreatedAt     time.Time       `json:"CreatedAt" gorm:"autoCreateTime"`
	ProjectName   string          `json:"ProjectName"`
	VersionName   string          `json:"VersionName"`
	ProjectID     string          `json:"ProjectID"`
	VersionID     string          `json:"VersionID"`
	ReportID      string          `json:"ReportID"`
	Kinds         JSONStringArray `json:"Kinds" gorm:"type:text"`
	Attempts      int             `json:"Attempts"`
	OutputPath    string          `json:"OutputPath"`
	EnrichedFiles []EnrichedFile  `json:"EnrichedFiles" gorm:"foreignKey:ReportRunID"`
}

// EnrichedFile records one enhanced entry appended to the output archive.
type EnrichedFile struct {
	ID                   uint   `json:"ID" gorm:"primaryKey;autoIncrement"`
	ReportRunID          uint   `json:"ReportRunID"`
	Entry                string `json:"Entry"`
	OutputEntry          string `json:"OutputEntry"`
	Rows                 int    `json:"Rows"`
	RowsWithoutFilePaths int    `json:"RowsWithoutFilePaths"`
}

// JSONStringArray custom type for handling JSON serialization of string arrays.
type JSONStringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (j JSONStringArray) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil // Return nil if the array is empty
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (j *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("JSONStringArray Scan error: expected []byte, got %T", value)
	}
	return json.Unmarshal(b, j)
}
