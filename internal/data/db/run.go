package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sca-tools/bdreport/internal/data/model"
	"github.com/sca-tools/bdreport/internal/log"
)

// RunManager defines the interface for recording report runs in the database.
type RunManager interface {
	// InsertRun inserts a new ReportRun and its EnrichedFile children.
	InsertRun(ctx context.Context, run *model.ReportRun) error
	// GetRun retrieves a ReportRun with its EnrichedFile children.
	GetRun(ctx context.Context, id uint) (*model.ReportRun, error)
	// LatestRuns retrieves the most recent runs, newest first.
	LatestRuns(ctx context.Context, limit int) ([]model.ReportRun, error)
}

// GormRunManager implements the RunManager interface using a GORM DB connection.
type GormRunManager struct {
	db *gorm.DB
}

// NewGormRunManager creates a new GormRunManager and migrates the schema.
func NewGormRunManager(db *gorm.DB) (*GormRunManager, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.AutoMigrate(&model.ReportRun{}, &model.EnrichedFile{}); err != nil {
		return nil, fmt.Errorf("error migrating run-history schema: %w", err)
	}
	return &GormRunManager{db: db}, nil
}

// InsertRun inserts a new ReportRun and its EnrichedFile children.
func (manager *GormRunManager) InsertRun(ctx context.Context, run *model.ReportRun) error {
	if ctx == nil {
		return fmt.Errorf("ctx cannot be nil")
	}
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	logger := log.NewLogger(ctx)
	logger.Debug("InsertRun", zap.Any("run", run))

	if err := manager.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("error creating report run: %w", err)
	}
	return nil
}

// GetRun retrieves a ReportRun and its EnrichedFile children.
func (manager *GormRunManager) GetRun(ctx context.Context, id uint) (*model.ReportRun, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx cannot be nil")
	}

	var run model.ReportRun
	if err := manager.db.WithContext(ctx).Preload("EnrichedFiles").First(&run, id).Error; err != nil {
		return nil, fmt.Errorf("error finding report run: %w", err)
	}
	return &run, nil
}

// LatestRuns retrieves the most recent runs, newest first.
func (manager *GormRunManager) LatestRuns(ctx context.Context, limit int) ([]model.ReportRun, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx cannot be nil")
	}

	var runs []model.ReportRun
	err := manager.db.WithContext(ctx).
		Preload("EnrichedFiles").
		Order("created_at desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("error listing report runs: %w", err)
	}
	return runs, nil
}
