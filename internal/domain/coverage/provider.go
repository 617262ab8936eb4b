package coverage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bluebutton/server/internal/platform/fhir"
	"github.com/bluebutton/server/internal/platform/telemetry"
	"github.com/bluebutton/server/pkg/pagination"
)

// CoverageTransformer maps beneficiaries to Coverage resources.
type CoverageTransformer interface {
	Transform(segment MedicareSegment, b *Beneficiary) *Coverage
	TransformAll(b *Beneficiary) []*Coverage
}

// Provider implements the Coverage read and search operations.
type Provider struct {
	beneficiaries BeneficiaryRepository
	transformer   CoverageTransformer
	metrics       *telemetry.Registry
}

func NewProvider(beneficiaries BeneficiaryRepository, transformer CoverageTransformer, metrics *telemetry.Registry) *Provider {
	return &Provider{beneficiaries: beneficiaries, transformer: transformer, metrics: metrics}
}

// Read returns the Coverage with the given composite id.
func (p *Provider) Read(ctx context.Context, id *fhir.IDType) (*Coverage, error) {
	if id == nil {
		return nil, fhir.NewArgumentError("Missing required coverage ID")
	}
	if id.HasVersion() {
		return nil, fhir.NewArgumentError("Coverage ID must not define a version: %s", id)
	}
	if strings.TrimSpace(id.IDPart) == "" {
		return nil, fhir.NewArgumentError("Missing required coverage ID")
	}

	segment, beneficiaryID, err := ParseCoverageID(id.IDPart)
	if err != nil {
		return nil, err
	}

	b, err := p.findBeneficiary(ctx, beneficiaryID)
	if errors.Is(err, ErrBeneficiaryNotFound) {
		return nil, fhir.NewNotFoundError("Beneficiary", beneficiaryID)
	}
	if err != nil {
		return nil, err
	}
	return p.transformer.Transform(segment, b), nil
}

// SearchByBeneficiary returns every Coverage of the referenced beneficiary,
// paged when the request asked for it. An unknown beneficiary yields an
// empty bundle.
func (p *Provider) SearchByBeneficiary(ctx context.Context, ref fhir.ReferenceParam, paging *pagination.Arguments) (*fhir.Bundle, error) {
	pagingRequested, err := paging.IsPagingRequested()
	if err != nil {
		return nil, err
	}
	var pageSize, startIndex int
	if pagingRequested {
		if pageSize, err = paging.PageSize(); err != nil {
			return nil, err
		}
		if startIndex, err = paging.StartIndex(); err != nil {
			return nil, err
		}
	}

	bundle := fhir.NewSearchBundle()

	b, err := p.findBeneficiary(ctx, ref.IDPart)
	if errors.Is(err, ErrBeneficiaryNotFound) {
		bundle.SetTotal(0)
		return bundle, nil
	}
	if err != nil {
		return nil, err
	}

	coverages := p.transformer.TransformAll(b)
	numTotal := len(coverages)

	if !pagingRequested {
		for _, c := range coverages {
			bundle.AddEntry(c)
		}
		bundle.SetTotal(numTotal)
		return bundle, nil
	}

	if startIndex < numTotal {
		end := startIndex + min(pageSize, numTotal-startIndex)
		for _, c := range coverages[startIndex:end] {
			bundle.AddEntry(c)
		}
	}
	if startIndex > 0 || numTotal > pageSize {
		if err := paging.AddPagingLinks(bundle, "/Coverage?", "&beneficiary=", ref.IDPart, numTotal); err != nil {
			return nil, err
		}
	}
	bundle.SetTotal(numTotal)
	return bundle, nil
}

// findBeneficiary times every store lookup, failed ones included.
func (p *Provider) findBeneficiary(ctx context.Context, beneficiaryID string) (*Beneficiary, error) {
	timer := p.metrics.Timer(telemetry.Name("CoverageProvider", "query", "bene_by_id")).Time()
	defer timer.Stop()

	b, err := p.beneficiaries.GetByID(ctx, beneficiaryID)
	if err != nil && !errors.Is(err, ErrBeneficiaryNotFound) {
		zerolog.Ctx(ctx).Error().Ctx(ctx).Err(err).Str("beneficiary_id", beneficiaryID).Msg("beneficiary lookup failed")
		return nil, fmt.Errorf("coverage: find beneficiary: %w", err)
	}
	return b, err
}
