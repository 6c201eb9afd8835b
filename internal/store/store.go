package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strconv"
	"strings"
	"time"
)

type Store struct {
	DB *sql.DB
}

type JobRow struct {
	ID         int64
	TemplateID string
	Channel    string
	SourceID   string
	Status     string
	CreatedAt  time.Time
}

type JobStats struct {
	Total   int
	Pending int
	Sent    int
	Failed  int
}

type RecipientRow struct {
	JobID       int64
	RecipientID string
	Address     string
	Status      string
	LastError   sql.NullString
	SentAt      sql.NullTime
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) InsertJob(ctx context.Context, tx *sql.Tx, templateID, channel, sourceID string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
	INSERT INTO dispatch_jobs (template_id,channel,source_id,status)
	VALUES ($1,$2,$3,'running') RETURNING id`, templateID, channel, sourceID).Scan(&id)
	return id, err
}

func (s *Store) InsertRecipientPending(ctx context.Context, tx *sql.Tx, jobID int64, recipientID, address string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO recipient_statuses (job_id, recipient_id, address, status)
		VALUES ($1,$2,$3,'pending')
	`, jobID, recipientID, address)
	return err
}

func (s *Store) MarkRecipientSent(ctx context.Context, db *sql.DB, jobID int64, recipientID string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE recipient_statuses
		   SET status='sent', sent_at=NOW(), last_error=NULL
		 WHERE job_id=$1 AND recipient_id=$2
	`, jobID, recipientID)
	return err
}

func (s *Store) MarkRecipientFailed(ctx context.Context, db *sql.DB, jobID int64, recipientID, lastErr string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE recipient_statuses
		   SET status='failed', last_error=$1
		 WHERE job_id=$2 AND recipient_id=$3
	`, lastErr, jobID, recipientID)
	return err
}

func (s *Store) MarkJobDone(ctx context.Context, db *sql.DB, jobID int64, status string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE dispatch_jobs SET status=$1 WHERE id=$2
	`, status, jobID)
	return err
}

func (s *Store) GetJob(ctx context.Context, id int64) (JobRow, error) {
	var j JobRow
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, template_id, channel, source_id, status, created_at
		FROM dispatch_jobs
		WHERE id = $1
	`, id).Scan(&j.ID, &j.TemplateID, &j.Channel, &j.SourceID, &j.Status, &j.CreatedAt)
	if err != nil {
		return JobRow{}, err
	}
	return j, nil
}

func (s *Store) GetJobStats(ctx context.Context, id int64) (JobStats, error) {
	var st JobStats
	err := s.DB.QueryRowContext(ctx, `
		SELECT
		  COUNT(*)                                         AS total,
		  COUNT(*) FILTER (WHERE status='pending')         AS pending,
		  COUNT(*) FILTER (WHERE status='sent')            AS sent,
		  COUNT(*) FILTER (WHERE status='failed')          AS failed
		FROM recipient_statuses
		WHERE job_id = $1
	`, id).Scan(&st.Total, &st.Pending, &st.Sent, &st.Failed)
	if err != nil {
		return JobStats{}, err
	}
	return st, nil
}

func (s *Store) ListRecipientStatuses(ctx context.Context, jobID int64) ([]RecipientRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT job_id, recipient_id, address, status, last_error, sent_at
		FROM recipient_statuses
		WHERE job_id = $1
		ORDER BY id
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecipientRow
	for rows.Next() {
		var r RecipientRow
		if err := rows.Scan(&r.JobID, &r.RecipientID, &r.Address, &r.Status, &r.LastError, &r.SentAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListJobs(ctx context.Context, limit, offset int) ([]JobRow, []JobStats, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, template_id, channel, source_id, status, created_at
		FROM dispatch_jobs
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var jobs []JobRow
	var ids []int64
	for rows.Next() {
		var j JobRow
		if err := rows.Scan(&j.ID, &j.TemplateID, &j.Channel, &j.SourceID, &j.Status, &j.CreatedAt); err != nil {
			return nil, nil, err
		}
		jobs = append(jobs, j)
		ids = append(ids, j.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(jobs) == 0 {
		return jobs, []JobStats{}, nil
	}

	statRows, err := s.DB.QueryContext(ctx, `
		SELECT job_id,
		       COUNT(*)                                         AS total,
		       COUNT(*) FILTER (WHERE status='pending')         AS pending,
		       COUNT(*) FILTER (WHERE status='sent')            AS sent,
		       COUNT(*) FILTER (WHERE status='failed')          AS failed
		FROM recipient_statuses
		WHERE job_id = ANY($1)
		GROUP BY job_id
	`, int64Slice(ids))
	if err != nil {
		return nil, nil, err
	}
	defer statRows.Close()

	statsByID := make(map[int64]JobStats, len(ids))
	for statRows.Next() {
		var id int64
		var st JobStats
		if err := statRows.Scan(&id, &st.Total, &st.Pending, &st.Sent, &st.Failed); err != nil {
			return nil, nil, err
		}
		statsByID[id] = st
	}
	if err := statRows.Err(); err != nil {
		return nil, nil, err
	}

	out := make([]JobStats, len(jobs))
	for i, j := range jobs {
		out[i] = statsByID[j.ID]
	}
	return jobs, out, nil
}

type int64Slice []int64

func (a int64Slice) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(v, 10))
	}
	b.WriteByte('}')
	return b.String(), nil
}
