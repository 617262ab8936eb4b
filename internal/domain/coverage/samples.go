package coverage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hengadev/errsx"
	"gopkg.in/yaml.v3"
)

// SampleSet is the YAML document accepted by the seed command.
type SampleSet struct {
	Beneficiaries []Beneficiary `yaml:"beneficiaries"`
}

// LoadSamples decodes and validates a SampleSet.
func LoadSamples(r io.Reader) (*SampleSet, error) {
	var set SampleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&set); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &set, nil
}

// LoadSamplesFile reads a SampleSet from path.
func LoadSamplesFile(path string) (*SampleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open samples: %w", err)
	}
	defer f.Close()
	return LoadSamples(f)
}

// Validate checks that every beneficiary has a unique id usable in a
// composite Coverage id.
func (s *SampleSet) Validate() error {
	var errs errsx.Map
	seen := make(map[string]bool, len(s.Beneficiaries))
	for i, b := range s.Beneficiaries {
		key := fmt.Sprintf("beneficiaries[%d]", i)
		switch {
		case strings.TrimSpace(b.BeneficiaryID) == "":
			errs.Set(key, "beneficiaryId is required")
		case seen[b.BeneficiaryID]:
			errs.Set(key, "duplicate beneficiaryId "+b.BeneficiaryID)
		default:
			if _, id, err := ParseCoverageID(FormatCoverageID(PartA, b.BeneficiaryID)); err != nil || id != b.BeneficiaryID {
				errs.Set(key, "beneficiaryId must contain only letters and digits")
			}
		}
		seen[b.BeneficiaryID] = true
	}
	if !errs.IsEmpty() {
		return errs.AsError()
	}
	return nil
}

// Seed upserts every beneficiary of the set into repo.
func (s *SampleSet) Seed(ctx context.Context, repo BeneficiaryRepository) error {
	for i := range s.Beneficiaries {
		if err := repo.Upsert(ctx, &s.Beneficiaries[i]); err != nil {
			return err
		}
	}
	return nil
}
