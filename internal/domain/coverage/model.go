package coverage

import (
	"time"

	"github.com/bluebutton/server/internal/platform/fhir"
)

// ResourceType is the FHIR resource type served by this package.
const ResourceType = "Coverage"

// Beneficiary maps to the beneficiaries table. Only BeneficiaryID is used
// for lookup; the remaining columns feed the Coverage extensions.
type Beneficiary struct {
	BeneficiaryID                string     `db:"beneficiary_id" json:"beneficiary_id" yaml:"beneficiaryId"`
	MedicareEnrollmentStatusCode *string    `db:"medicare_status_code" json:"medicare_status_code,omitempty" yaml:"medicareStatusCode,omitempty"`
	EntitlementCodeOriginal      *string    `db:"entitlement_code_original" json:"entitlement_code_original,omitempty" yaml:"entitlementCodeOriginal,omitempty"`
	EntitlementCodeCurrent       *string    `db:"entitlement_code_current" json:"entitlement_code_current,omitempty" yaml:"entitlementCodeCurrent,omitempty"`
	PartATerminationCode         *string    `db:"part_a_termination_code" json:"part_a_termination_code,omitempty" yaml:"partATerminationCode,omitempty"`
	PartBTerminationCode         *string    `db:"part_b_termination_code" json:"part_b_termination_code,omitempty" yaml:"partBTerminationCode,omitempty"`
	PartDContractNumber          *string    `db:"part_d_contract_number" json:"part_d_contract_number,omitempty" yaml:"partDContractNumber,omitempty"`
	UpdatedAt                    *time.Time `db:"updated_at" json:"updated_at,omitempty" yaml:"-"`
}

// Coverage is the FHIR STU3 Coverage resource as served by this API.
type Coverage struct {
	ResourceType string                `json:"resourceType"`
	ID           string                `json:"id"`
	Meta         *fhir.Meta            `json:"meta,omitempty"`
	Extension    []fhir.Extension      `json:"extension,omitempty"`
	Status       string                `json:"status"`
	Type         *fhir.CodeableConcept `json:"type,omitempty"`
	Beneficiary  fhir.Reference        `json:"beneficiary"`
	Grouping     *Grouping             `json:"grouping,omitempty"`
}

// Grouping is Coverage.grouping.
type Grouping struct {
	SubGroup string `json:"subGroup,omitempty"`
	SubPlan  string `json:"subPlan,omitempty"`
}

func (c *Coverage) GetResourceType() string { return c.ResourceType }

func (c *Coverage) GetID() string { return c.ID }

// ExtensionByURL returns the first extension with the given URL.
func (c *Coverage) ExtensionByURL(url string) (fhir.Extension, bool) {
	for _, e := range c.Extension {
		if e.URL == url {
			return e, true
		}
	}
	return fhir.Extension{}, false
}
