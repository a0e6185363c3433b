package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type VisitRepository struct {
	db *sqlx.DB
}

func NewVisitRepository(db *sqlx.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// RecordVisit appends the visit to the log and marks the device and the OS
// family as seen for the code. The unique rows rely on ON CONFLICT DO
// NOTHING, so concurrent first visits produce exactly one row each.
func (r *VisitRepository) RecordVisit(ctx context.Context, visit entity.Visit) (err error) {
	const op = "adapter.repository.postgres.VisitRepository.RecordVisit"
	const (
		insertLog = `INSERT INTO short_url_logs(short_code, visited_at, device_fingerprint, os_family, device_type, browser, ip_hash, referer)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		insertDevice = `INSERT INTO short_url_unique_devices(short_code, device_fingerprint, first_seen_at)
VALUES ($1, $2, $3)
ON CONFLICT (short_code, device_fingerprint) DO NOTHING`
		insertOS = `INSERT INTO short_url_unique_os(short_code, os_family, first_seen_at)
VALUES ($1, $2, $3)
ON CONFLICT (short_code, os_family) DO NOTHING`
	)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertLog,
		visit.Code, visit.VisitedAt, visit.DeviceFingerprint, visit.OSFamily,
		visit.DeviceType, visit.Browser, visit.IPHash, visit.Referer,
	); err != nil {
		return fmt.Errorf("%s: failed to insert into short_url_logs table: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx, insertDevice, visit.Code, visit.DeviceFingerprint, visit.VisitedAt); err != nil {
		return fmt.Errorf("%s: failed to insert into short_url_unique_devices table: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx, insertOS, visit.Code, visit.OSFamily, visit.VisitedAt); err != nil {
		return fmt.Errorf("%s: failed to insert into short_url_unique_os table: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

type statsDB struct {
	TotalVisits   int64        `db:"total_visits"`
	UniqueDevices int64        `db:"unique_devices"`
	UniqueOS      int64        `db:"unique_os"`
	LastVisitAt   sql.NullTime `db:"last_visit_at"`
}

type breakdownDB struct {
	Key    string `db:"key"`
	Visits int64  `db:"visits"`
}

func toBreakdown(rows []breakdownDB) map[string]int64 {
	m := make(map[string]int64, len(rows))
	for _, row := range rows {
		m[row.Key] = row.Visits
	}
	return m
}

// Stats aggregates the analytics tables of code. It does not check that code
// exists.
func (r *VisitRepository) Stats(ctx context.Context, code string) (*entity.Stats, error) {
	const op = "adapter.repository.postgres.VisitRepository.Stats"
	const (
		totalsQuery = `SELECT
	(SELECT COUNT(*) FROM short_url_logs WHERE short_code = $1) AS total_visits,
	(SELECT COUNT(*) FROM short_url_unique_devices WHERE short_code = $1) AS unique_devices,
	(SELECT COUNT(*) FROM short_url_unique_os WHERE short_code = $1) AS unique_os,
	(SELECT MAX(visited_at) FROM short_url_logs WHERE short_code = $1) AS last_visit_at`
		byOSQuery = `SELECT os_family AS key, COUNT(*) AS visits
FROM short_url_logs WHERE short_code = $1 GROUP BY os_family`
		byDeviceQuery = `SELECT device_type AS key, COUNT(*) AS visits
FROM short_url_logs WHERE short_code = $1 GROUP BY device_type`
	)

	var totals statsDB

	if err := r.db.GetContext(ctx, &totals, totalsQuery, code); err != nil {
		return nil, fmt.Errorf("%s: failed to get visit totals: %w", op, err)
	}

	var byOS, byDevice []breakdownDB

	if err := r.db.SelectContext(ctx, &byOS, byOSQuery, code); err != nil {
		return nil, fmt.Errorf("%s: failed to get visits by os: %w", op, err)
	}

	if err := r.db.SelectContext(ctx, &byDevice, byDeviceQuery, code); err != nil {
		return nil, fmt.Errorf("%s: failed to get visits by device: %w", op, err)
	}

	stats := &entity.Stats{
		Code:           code,
		TotalVisits:    totals.TotalVisits,
		UniqueDevices:  totals.UniqueDevices,
		UniqueOS:       totals.UniqueOS,
		VisitsByOS:     toBreakdown(byOS),
		VisitsByDevice: toBreakdown(byDevice),
	}

	if totals.LastVisitAt.Valid {
		lastVisitAt := totals.LastVisitAt.Time
		stats.LastVisitAt = &lastVisitAt
	}

	return stats, nil
}
