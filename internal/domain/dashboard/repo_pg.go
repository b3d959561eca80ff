package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) Totals(ctx context.Context) (*Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE role = 'doctor'),
			(SELECT COUNT(*) FROM users WHERE role = 'patient'),
			(SELECT COUNT(*) FROM appointment),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM payment WHERE status = 'completed')`).
		Scan(&t.Users, &t.Doctors, &t.Patients, &t.Appointments, &t.Revenue)
	if err != nil {
		return nil, fmt.Errorf("platform totals: %w", err)
	}
	return &t, nil
}

func (r *repoPG) Monthly(ctx context.Context, from, to time.Time) (map[string]MonthStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(appointment_date, 'YYYY-MM'), COUNT(*),
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0)::float8
		FROM appointment
		WHERE appointment_date >= $1::date AND appointment_date < $2::date
		GROUP BY 1`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("monthly statistics: %w", err)
	}
	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MonthStat, error) {
		var m MonthStat
		err := row.Scan(&m.Month, &m.Count, &m.Revenue)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("monthly statistics: %w", err)
	}
	out := make(map[string]MonthStat, len(stats))
	for _, m := range stats {
		out[m.Month] = m
	}
	return out, nil
}
