package store

import (
	"context"
	"errors"

	"github.com/jaeyoon-song/fabsight/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// LatestAlarm identifies the most recent alarm-flagged equipment-day.
type LatestAlarm struct {
	Date  string `json:"date"`
	EqpID string `json:"eqp_id"`
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// GetKPIDaily returns the single kpi_daily row for an equipment-day.
	GetKPIDaily(ctx context.Context, date, eqpID string) (*models.KPIRecord, error)

	// GetLatestAlarm returns the newest row with alarm_flag = 1.
	GetLatestAlarm(ctx context.Context) (*LatestAlarm, error)

	// ListLotStates returns lot-state events for the equipment on the given day.
	ListLotStates(ctx context.Context, eqpID, date string) ([]models.LotState, error)

	// ListEqpStates returns equipment up/down events for the equipment on the given day.
	ListEqpStates(ctx context.Context, eqpID, date string) ([]models.EqpState, error)

	// ListRecipes returns the recipes assigned to the equipment.
	ListRecipes(ctx context.Context, eqpID string) ([]models.Recipe, error)

	// ListKPITrend returns the kpi_daily rows for the `days` days preceding
	// (and excluding) `date`, oldest first.
	ListKPITrend(ctx context.Context, eqpID, date string, days int) ([]models.KPIRecord, error)
}
