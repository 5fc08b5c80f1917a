package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaeyoon-song/fabsight/pkg/models"
)

const (
	dateLayout  = "2006-01-02"
	eventLayout = "2006-01-02 15:04"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) GetKPIDaily(ctx context.Context, date, eqpID string) (*models.KPIRecord, error) {
	var (
		r models.KPIRecord
		d time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT date, eqp_id, line_id, oper_id,
		        oee_v, oee_t, thp_v, thp_t, tat_v, tat_t, wip_v, wip_t,
		        good_out_qty, alarm_flag
		 FROM kpi_daily WHERE date = $1 AND eqp_id = $2 LIMIT 1`, date, eqpID,
	).Scan(&d, &r.EqpID, &r.LineID, &r.OperID,
		&r.OEEActual, &r.OEETarget, &r.THPActual, &r.THPTarget,
		&r.TATActual, &r.TATTarget, &r.WIPActual, &r.WIPTarget,
		&r.GoodOutQty, &r.AlarmFlag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get kpi daily: %w", err)
	}
	r.Date = d.Format(dateLayout)
	return &r, nil
}

func (s *PostgresStore) GetLatestAlarm(ctx context.Context) (*LatestAlarm, error) {
	var (
		a LatestAlarm
		d time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT date, eqp_id FROM kpi_daily WHERE alarm_flag = 1
		 ORDER BY date DESC LIMIT 1`,
	).Scan(&d, &a.EqpID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest alarm: %w", err)
	}
	a.Date = d.Format(dateLayout)
	return &a, nil
}

func (s *PostgresStore) ListLotStates(ctx context.Context, eqpID, date string) ([]models.LotState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT lot_id, eqp_id, lot_state, in_cnt, event_time
		 FROM lot_state
		 WHERE eqp_id = $1
		   AND event_time >= $2::date
		   AND event_time < $2::date + INTERVAL '1 day'
		 ORDER BY event_time`, eqpID, date)
	if err != nil {
		return nil, fmt.Errorf("list lot states: %w", err)
	}
	defer rows.Close()

	var lots []models.LotState
	for rows.Next() {
		var (
			l  models.LotState
			et time.Time
		)
		if err := rows.Scan(&l.LotID, &l.EqpID, &l.State, &l.InCount, &et); err != nil {
			return nil, fmt.Errorf("scan lot state: %w", err)
		}
		l.EventTime = et.Format(eventLayout)
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (s *PostgresStore) ListEqpStates(ctx context.Context, eqpID, date string) ([]models.EqpState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT eqp_id, eqp_state, event_time, end_time
		 FROM eqp_state
		 WHERE eqp_id = $1
		   AND event_time >= $2::date
		   AND event_time < $2::date + INTERVAL '1 day'
		 ORDER BY event_time`, eqpID, date)
	if err != nil {
		return nil, fmt.Errorf("list eqp states: %w", err)
	}
	defer rows.Close()

	var events []models.EqpState
	for rows.Next() {
		var (
			e   models.EqpState
			et  time.Time
			end *time.Time
		)
		if err := rows.Scan(&e.EqpID, &e.State, &et, &end); err != nil {
			return nil, fmt.Errorf("scan eqp state: %w", err)
		}
		e.EventTime = et.Format(eventLayout)
		if end != nil {
			e.EndTime = end.Format(eventLayout)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) ListRecipes(ctx context.Context, eqpID string) ([]models.Recipe, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rcp_id, eqp_id, complex_level FROM rcp_state
		 WHERE eqp_id = $1 ORDER BY rcp_id`, eqpID)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []models.Recipe
	for rows.Next() {
		var r models.Recipe
		if err := rows.Scan(&r.RcpID, &r.EqpID, &r.ComplexLevel); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

func (s *PostgresStore) ListKPITrend(ctx context.Context, eqpID, date string, days int) ([]models.KPIRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, eqp_id, line_id, oper_id,
		        oee_v, oee_t, thp_v, thp_t, tat_v, tat_t, wip_v, wip_t,
		        good_out_qty, alarm_flag
		 FROM kpi_daily
		 WHERE eqp_id = $1
		   AND date >= $2::date - $3 * INTERVAL '1 day'
		   AND date < $2::date
		 ORDER BY date`, eqpID, date, days)
	if err != nil {
		return nil, fmt.Errorf("list kpi trend: %w", err)
	}
	defer rows.Close()

	var records []models.KPIRecord
	for rows.Next() {
		var (
			r models.KPIRecord
			d time.Time
		)
		if err := rows.Scan(&d, &r.EqpID, &r.LineID, &r.OperID,
			&r.OEEActual, &r.OEETarget, &r.THPActual, &r.THPTarget,
			&r.TATActual, &r.TATTarget, &r.WIPActual, &r.WIPTarget,
			&r.GoodOutQty, &r.AlarmFlag); err != nil {
			return nil, fmt.Errorf("scan kpi record: %w", err)
		}
		r.Date = d.Format(dateLayout)
		records = append(records, r)
	}
	return records, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
