package postgres

import (
	"context"
	"time"
)

// EnsureMonthlyPartition creates the raw_events partition covering
// partitionStart's calendar month, calling the embedded SQL helper
// (grounded on the teacher's CreateMonthlyPartition). Idempotent: returns
// "(already exists)" if the partition is already present.
func (s *Store) EnsureMonthlyPartition(ctx context.Context, table string, partitionStart time.Time) (string, error) {
	var result string
	err := s.pool.QueryRow(ctx,
		`SELECT create_monthly_partition($1, $2::date)`,
		table, partitionStart.Format("2006-01-02"),
	).Scan(&result)
	return result, err
}

// EnsurePartitionsFor makes sure raw_events has partitions for ts's month
// and the following month, so writes landing right at a month boundary
// never hit an unpartitioned range (spec §5 resource/retention policy).
func (s *Store) EnsurePartitionsFor(ctx context.Context, ts int64) error {
	t := time.Unix(ts, 0).UTC()
	monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.EnsureMonthlyPartition(ctx, "raw_events", monthStart); err != nil {
		return err
	}
	_, err := s.EnsureMonthlyPartition(ctx, "raw_events", monthStart.AddDate(0, 1, 0))
	return err
}
