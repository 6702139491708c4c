package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"uvchamber/internal/models"
	"uvchamber/internal/profile"
)

type ProfileSQLite struct {
	db *sql.DB
}

func NewProfileSQLite(db *sql.DB) *ProfileSQLite {
	return &ProfileSQLite{db: db}
}

// Ensure implementation of ProfileRepo interface at compile time.
var _ ProfileRepo = (*ProfileSQLite)(nil)

const (
	upsertProfileSQL = `
		INSERT INTO profiles (name, description, manual_stop, tree, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description=excluded.description,
			manual_stop=excluded.manual_stop,
			tree=excluded.tree,
			updated_at=excluded.updated_at
	`

	selectProfileSQL = `
		SELECT name, description, manual_stop, tree FROM profiles WHERE name=?
	`

	listProfilesSQL = `
		SELECT name, description, manual_stop, tree, updated_at
		FROM profiles ORDER BY name ASC
	`

	deleteProfileSQL = `DELETE FROM profiles WHERE name=?`

	selectProfileNamesSQL = `SELECT name FROM profiles ORDER BY name ASC`
)

// marshalTree converts the entry list to its JSON column form.
func marshalTree(entries []profile.Node) (string, error) {
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalTree parses the JSON column back into an entry list.
func unmarshalTree(s string) ([]profile.Node, error) {
	var entries []profile.Node
	if err := json.Unmarshal([]byte(s), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Save inserts the profile or overwrites the row with the same name.
func (r *ProfileSQLite) Save(ctx context.Context, p profile.Profile) error {
	tree, err := marshalTree(p.Entries)
	if err != nil {
		return fmt.Errorf("marshal tree for profile %q: %w", p.Name, err)
	}

	_, err = r.db.ExecContext(ctx, upsertProfileSQL,
		p.Name,
		p.Description,
		p.ManualStop,
		tree,
		time.Now().UTC(),
	)
	return err
}

// Get fetches one profile by name.
func (r *ProfileSQLite) Get(ctx context.Context, name string) (profile.Profile, error) {
	row := r.db.QueryRowContext(ctx, selectProfileSQL, name)

	var p profile.Profile
	var tree string
	if err := row.Scan(&p.Name, &p.Description, &p.ManualStop, &tree); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.Profile{}, fmt.Errorf("profile %q: %w", name, ErrNotFound)
		}
		return profile.Profile{}, err
	}

	entries, err := unmarshalTree(tree)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("decode tree for profile %q: %w", name, err)
	}
	p.Entries = entries

	return p, nil
}

// List returns summaries for every stored profile, ordered by name.
func (r *ProfileSQLite) List(ctx context.Context) ([]models.ProfileSummary, error) {
	rows, err := r.db.QueryContext(ctx, listProfilesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ProfileSummary, 0, 16)
	for rows.Next() {
		var (
			sum  models.ProfileSummary
			tree string
		)
		if err := rows.Scan(&sum.Name, &sum.Description, &sum.ManualStop, &tree, &sum.UpdatedAt); err != nil {
			return nil, err
		}

		entries, err := unmarshalTree(tree)
		if err != nil {
			return nil, fmt.Errorf("decode tree for profile %q: %w", sum.Name, err)
		}
		p := profile.Profile{ManualStop: sum.ManualStop, Entries: entries}
		sum.TotalDurationMs = p.TotalDurationMs()
		sum.UpdatedAt = sum.UpdatedAt.UTC()

		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes one profile by name.
func (r *ProfileSQLite) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, deleteProfileSQL, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	return nil
}

// Names returns the stored profile names, ordered.
func (r *ProfileSQLite) Names(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, selectProfileNamesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
