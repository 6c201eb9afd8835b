package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestInsertJob_WithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
	INSERT INTO dispatch_jobs (template_id,channel,source_id,status)
	VALUES ($1,$2,$3,'running') RETURNING id`)).
		WithArgs("tpl-1", "EMAIL", "src-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	var id int64
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		var e error
		id, e = s.InsertJob(ctx, tx, "tpl-1", "EMAIL", "src-1")
		return e
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != 7 {
		t.Fatalf("want id=7, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertRecipientPending_And_MarkSent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO recipient_statuses (job_id, recipient_id, address, status)
		VALUES ($1,$2,$3,'pending')
	`)).
		WithArgs(int64(7), "r1", "a@x.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		return s.InsertRecipientPending(ctx, tx, 7, "r1", "a@x.com")
	})
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE recipient_statuses
		   SET status='sent', sent_at=NOW(), last_error=NULL
		 WHERE job_id=$1 AND recipient_id=$2
	`)).
		WithArgs(int64(7), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.MarkRecipientSent(ctx, db, 7, "r1"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkRecipientFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE recipient_statuses
		   SET status='failed', last_error=$1
		 WHERE job_id=$2 AND recipient_id=$3
	`)).
		WithArgs("gateway returned 500: boom", int64(7), "r2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.MarkRecipientFailed(ctx, db, 7, "r2", "gateway returned 500: boom"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetJobStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "sent", "failed"}).AddRow(3, 0, 2, 1))

	st, err := s.GetJobStats(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.Sent != 2 || st.Failed != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
