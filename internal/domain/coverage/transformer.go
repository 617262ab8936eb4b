package coverage

import (
	"github.com/bluebutton/server/internal/platform/fhir"
	"github.com/bluebutton/server/internal/platform/telemetry"
)

const (
	// SubGroupMedicare is stamped on Coverage.grouping.subGroup.
	SubGroupMedicare = "Medicare"

	variablesBaseURL = "https://bluebutton.cms.gov/resources/variables/"
)

// Extension URLs for the beneficiary enrollment columns.
const (
	ExtMedicareStatusCode        = variablesBaseURL + "ms_cd"
	ExtEntitlementCodeOriginal   = variablesBaseURL + "orec"
	ExtEntitlementCodeCurrent    = variablesBaseURL + "crec"
	ExtPartATerminationCode      = variablesBaseURL + "a_trm_cd"
	ExtPartBTerminationCode      = variablesBaseURL + "b_trm_cd"
	ExtPartDContractNumber       = variablesBaseURL + "ptdcntrct01"
	coverageTypeSystem           = "http://hl7.org/fhir/v3/ActCode"
	coverageTypePublicHealthCode = "PUBLICPOL"
)

// Transformer builds Coverage resources from a Beneficiary.
type Transformer struct {
	metrics *telemetry.Registry
}

// NewTransformer creates a Transformer that times each transform call.
func NewTransformer(metrics *telemetry.Registry) *Transformer {
	return &Transformer{metrics: metrics}
}

// Transform builds the Coverage for one segment.
func (t *Transformer) Transform(segment MedicareSegment, b *Beneficiary) *Coverage {
	timer := t.metrics.Timer(telemetry.Name("CoverageTransformer", "transform")).Time()
	defer timer.Stop()

	cov := &Coverage{
		ResourceType: ResourceType,
		ID:           FormatCoverageID(segment, b.BeneficiaryID),
		Status:       "active",
		Type: &fhir.CodeableConcept{
			Coding: []fhir.Coding{{
				System:  coverageTypeSystem,
				Code:    coverageTypePublicHealthCode,
				Display: "public healthcare",
			}},
		},
		Beneficiary: fhir.Reference{Reference: fhir.FormatReference("Patient", b.BeneficiaryID)},
		Grouping: &Grouping{
			SubGroup: SubGroupMedicare,
			SubPlan:  segment.Plan(),
		},
	}
	if b.UpdatedAt != nil {
		cov.Meta = &fhir.Meta{LastUpdated: b.UpdatedAt}
	}

	addCoding(cov, ExtMedicareStatusCode, b.MedicareEnrollmentStatusCode)
	switch segment {
	case PartA:
		addCoding(cov, ExtEntitlementCodeOriginal, b.EntitlementCodeOriginal)
		addCoding(cov, ExtEntitlementCodeCurrent, b.EntitlementCodeCurrent)
		addCoding(cov, ExtPartATerminationCode, b.PartATerminationCode)
	case PartB:
		addCoding(cov, ExtPartBTerminationCode, b.PartBTerminationCode)
	case PartD:
		if b.PartDContractNumber != nil && *b.PartDContractNumber != "" {
			cov.Extension = append(cov.Extension, fhir.Extension{
				URL:             ExtPartDContractNumber,
				ValueIdentifier: &fhir.Identifier{System: ExtPartDContractNumber, Value: *b.PartDContractNumber},
			})
		}
	}
	return cov
}

// TransformAll builds one Coverage per segment, in Segments() order.
func (t *Transformer) TransformAll(b *Beneficiary) []*Coverage {
	segments := Segments()
	out := make([]*Coverage, 0, len(segments))
	for _, s := range segments {
		out = append(out, t.Transform(s, b))
	}
	return out
}

func addCoding(cov *Coverage, url string, code *string) {
	if code == nil || *code == "" {
		return
	}
	cov.Extension = append(cov.Extension, fhir.Extension{
		URL:         url,
		ValueCoding: &fhir.Coding{System: url, Code: *code},
	})
}
