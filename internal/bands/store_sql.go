package bands

import (
	"context"
	"database/sql"
)

// LoadSQL reads the full band conversion table. Called once at startup (or
// after an admin table update); grading never touches the database.
func LoadSQL(ctx context.Context, db *sql.DB) (*Table, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT exam_type, section_type, min_raw, max_raw, band FROM band_scale`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ExamType, &e.SectionType, &e.MinRaw, &e.MaxRaw, &e.Band); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewTable(entries), nil
}

// ReplaceSQL swaps the stored rows for one exam type in a single
// transaction.
func ReplaceSQL(ctx context.Context, db *sql.DB, examType string, entries []Entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM band_scale WHERE exam_type=$1`, examType); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO band_scale (exam_type, section_type, min_raw, max_raw, band)
			 VALUES ($1,$2,$3,$4,$5)`,
			e.ExamType, e.SectionType, e.MinRaw, e.MaxRaw, e.Band); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SeedSQL inserts the built-in IELTS table when the store is empty, so an
// offline sqlite install grades out of the box.
func SeedSQL(ctx context.Context, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM band_scale`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return ReplaceSQL(ctx, db, "ielts", DefaultIELTS())
}
