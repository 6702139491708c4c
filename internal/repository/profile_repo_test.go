package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"uvchamber/internal/profile"
	"uvchamber/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestProfileSQLite_Save_UpsertsJSONTreeWithUTCNow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	repo := repository.NewProfileSQLite(db)

	p := profile.Profile{
		Name:        "cure-long",
		Description: "overnight low power",
		ManualStop:  false,
		Entries: []profile.Node{
			{Kind: profile.KindConstant, StartIntensity: 50, DurationMs: 60000},
		},
	}

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok {
			return false
		}
		if tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles")).
		WithArgs(
			"cure-long",
			"overnight low power",
			false,
			`[{"kind":"constant","start_intensity":50,"duration_ms":60000}]`,
			isUTCRecent,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileSQLite_Save_ExecErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	repo := repository.NewProfileSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO profiles")).
		WillReturnError(errors.New("db down"))

	err = repo.Save(context.Background(), profile.Profile{
		Name:    "x",
		Entries: []profile.Node{{Kind: profile.KindConstant, StartIntensity: 10, DurationMs: 100}},
	})
	if err == nil {
		t.Fatalf("Save() expected error, got nil")
	}
}

func TestProfileSQLite_Get_DecodesTree(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	repo := repository.NewProfileSQLite(db)

	cols := []string{"name", "description", "manual_stop", "tree"}
	tree := `[{"kind":"loop","repeat_count":3,"body":[{"kind":"ramp","start_intensity":0,"end_intensity":80,"duration_ms":2000}]}]`
	rows := sqlmock.NewRows(cols).AddRow("anneal", "soft start", false, tree)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, description, manual_stop, tree FROM profiles WHERE name=?")).
		WithArgs("anneal").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "anneal")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}

	if got.Name != "anneal" || got.Description != "soft start" || got.ManualStop {
		t.Fatalf("Get() unexpected fields: %+v", got)
	}
	if len(got.Entries) != 1 || !got.Entries[0].IsLoop() || got.Entries[0].RepeatCount != 3 {
		t.Fatalf("Get() unexpected entries: %+v", got.Entries)
	}
	if body := got.Entries[0].Body; len(body) != 1 || body[0].Kind != profile.KindRamp || body[0].EndIntensity != 80 {
		t.Fatalf("Get() unexpected body: %+v", got.Entries[0].Body)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileSQLite_Get_NoRowsIsErrNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	repo := repository.NewProfileSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, description, manual_stop, tree FROM profiles")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Get(context.Background(), "ghost")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestProfileSQLite_Get_InvalidTreeJSON_ReturnsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	repo := repository.NewProfileSQLite(db)

	cols := []string{"name", "description", "manual_stop", "tree"}
	rows := sqlmock.NewRows(cols).AddRow("bad", "", false, `{not: "an array"}`)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, description, manual_stop, tree FROM profiles")).
		WithArgs("bad").
		WillReturnRows(rows)

	_, err = repo.Get(context.Background(), "bad")
	if err == nil {
		t.Fatalf("Get() expected error due to invalid tree JSON, got nil")
	}
}

func TestProfileSQLite_List_ComputesTotals(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	repo := repository.NewProfileSQLite(db)

	locNY, _ := time.LoadLocation("America/New_York")
	updated := time.Date(2026, 2, 1, 8, 30, 0, 0, locNY)

	cols := []string{"name", "description", "manual_stop", "tree", "updated_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("bounded", "", false,
			`[{"kind":"loop","repeat_count":3,"body":[{"kind":"constant","start_intensity":40,"duration_ms":1000}]}]`,
			updated).
		AddRow("endless", "", true,
			`[{"kind":"loop","body":[{"kind":"constant","start_intensity":30,"duration_ms":1000}]}]`,
			updated)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, description, manual_stop, tree, updated_at")).
		WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() want 2 summaries, got %d", len(got))
	}

	if got[0].Name != "bounded" || got[0].TotalDurationMs != 3000 {
		t.Fatalf("List()[0] unexpected: %+v", got[0])
	}
	if got[1].Name != "endless" || got[1].TotalDurationMs != profile.Unbounded || !got[1].ManualStop {
		t.Fatalf("List()[1] unexpected: %+v", got[1])
	}
	if got[0].UpdatedAt.Location() != time.UTC {
		t.Fatalf("List() UpdatedAt not UTC: %v", got[0].UpdatedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileSQLite_Delete(t *testing.T) {
	tests := []struct {
		name       string
		mockExpect func(sqlmock.Sqlmock)
		wantErr    error
	}{
		{
			name: "deleted",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("DELETE FROM profiles WHERE name=?")).
					WithArgs("old").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantErr: nil,
		},
		{
			name: "missing row",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta("DELETE FROM profiles WHERE name=?")).
					WithArgs("old").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: repository.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock.New(): %v", err)
			}
			defer func(db *sql.DB) {
				_ = db.Close()
			}(db)

			repo := repository.NewProfileSQLite(db)
			tt.mockExpect(mock)

			err = repo.Delete(context.Background(), "old")
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Delete() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Delete() error = %v, want %v", err, tt.wantErr)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestProfileSQLite_Names(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)

	repo := repository.NewProfileSQLite(db)

	rows := sqlmock.NewRows([]string{"name"}).AddRow("P-01").AddRow("P-03").AddRow("anneal")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM profiles ORDER BY name ASC")).
		WillReturnRows(rows)

	got, err := repo.Names(context.Background())
	if err != nil {
		t.Fatalf("Names() unexpected error: %v", err)
	}
	want := []string{"P-01", "P-03", "anneal"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Helpers

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
