package coverage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS beneficiaries (
	beneficiary_id            TEXT PRIMARY KEY,
	medicare_status_code      TEXT,
	entitlement_code_original TEXT,
	entitlement_code_current  TEXT,
	part_a_termination_code   TEXT,
	part_b_termination_code   TEXT,
	part_d_contract_number    TEXT,
	updated_at                TIMESTAMP
)`

type beneficiaryRepoSQLite struct{ db *sql.DB }

// OpenSQLite opens the database at path and creates the beneficiaries table
// if needed. ":memory:" is accepted for tests.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return db, nil
}

func NewBeneficiaryRepoSQLite(db *sql.DB) BeneficiaryRepository {
	return &beneficiaryRepoSQLite{db: db}
}

func (r *beneficiaryRepoSQLite) GetByID(ctx context.Context, beneficiaryID string) (*Beneficiary, error) {
	var b Beneficiary
	var updated sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT `+beneCols+` FROM beneficiaries WHERE beneficiary_id = ?`, beneficiaryID).
		Scan(&b.BeneficiaryID, &b.MedicareEnrollmentStatusCode, &b.EntitlementCodeOriginal,
			&b.EntitlementCodeCurrent, &b.PartATerminationCode, &b.PartBTerminationCode,
			&b.PartDContractNumber, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBeneficiaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select beneficiary %s: %w", beneficiaryID, err)
	}
	if updated.Valid {
		t := updated.Time
		b.UpdatedAt = &t
	}
	return &b, nil
}

func (r *beneficiaryRepoSQLite) Upsert(ctx context.Context, b *Beneficiary) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO beneficiaries (`+beneCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (beneficiary_id) DO UPDATE SET
			medicare_status_code = excluded.medicare_status_code,
			entitlement_code_original = excluded.entitlement_code_original,
			entitlement_code_current = excluded.entitlement_code_current,
			part_a_termination_code = excluded.part_a_termination_code,
			part_b_termination_code = excluded.part_b_termination_code,
			part_d_contract_number = excluded.part_d_contract_number,
			updated_at = excluded.updated_at`,
		b.BeneficiaryID, b.MedicareEnrollmentStatusCode, b.EntitlementCodeOriginal,
		b.EntitlementCodeCurrent, b.PartATerminationCode, b.PartBTerminationCode,
		b.PartDContractNumber, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert beneficiary %s: %w", b.BeneficiaryID, err)
	}
	return nil
}
