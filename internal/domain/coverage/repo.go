package coverage

import (
	"context"
	"errors"
)

// ErrBeneficiaryNotFound is returned by a BeneficiaryRepository when no row
// has the requested id.
var ErrBeneficiaryNotFound = errors.New("beneficiary not found")

// BeneficiaryRepository loads beneficiaries by primary key.
type BeneficiaryRepository interface {
	GetByID(ctx context.Context, beneficiaryID string) (*Beneficiary, error)
	Upsert(ctx context.Context, b *Beneficiary) error
}
