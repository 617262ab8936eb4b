package coverage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bluebutton/server/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type beneficiaryRepoPG struct{ pool *pgxpool.Pool }

func NewBeneficiaryRepoPG(pool *pgxpool.Pool) BeneficiaryRepository {
	return &beneficiaryRepoPG{pool: pool}
}

func (r *beneficiaryRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const beneCols = `beneficiary_id, medicare_status_code, entitlement_code_original,
	entitlement_code_current, part_a_termination_code, part_b_termination_code,
	part_d_contract_number, updated_at`

func (r *beneficiaryRepoPG) GetByID(ctx context.Context, beneficiaryID string) (*Beneficiary, error) {
	var b Beneficiary
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+beneCols+` FROM beneficiaries WHERE beneficiary_id = $1`, beneficiaryID).
		Scan(&b.BeneficiaryID, &b.MedicareEnrollmentStatusCode, &b.EntitlementCodeOriginal,
			&b.EntitlementCodeCurrent, &b.PartATerminationCode, &b.PartBTerminationCode,
			&b.PartDContractNumber, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBeneficiaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select beneficiary %s: %w", beneficiaryID, err)
	}
	return &b, nil
}

func (r *beneficiaryRepoPG) Upsert(ctx context.Context, b *Beneficiary) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO beneficiaries (`+beneCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (beneficiary_id) DO UPDATE SET
			medicare_status_code = EXCLUDED.medicare_status_code,
			entitlement_code_original = EXCLUDED.entitlement_code_original,
			entitlement_code_current = EXCLUDED.entitlement_code_current,
			part_a_termination_code = EXCLUDED.part_a_termination_code,
			part_b_termination_code = EXCLUDED.part_b_termination_code,
			part_d_contract_number = EXCLUDED.part_d_contract_number,
			updated_at = NOW()`,
		b.BeneficiaryID, b.MedicareEnrollmentStatusCode, b.EntitlementCodeOriginal,
		b.EntitlementCodeCurrent, b.PartATerminationCode, b.PartBTerminationCode,
		b.PartDContractNumber)
	if err != nil {
		return fmt.Errorf("upsert beneficiary %s: %w", b.BeneficiaryID, err)
	}
	return nil
}
