package coverage

import (
	"regexp"

	"github.com/bluebutton/server/internal/platform/fhir"
)

// MedicareSegment is one of the Medicare parts a beneficiary can be
// enrolled in. Every segment yields one Coverage per beneficiary.
type MedicareSegment int

const (
	PartA MedicareSegment = iota
	PartB
	PartD
)

// Plan values stamped on Coverage.grouping.subPlan.
const (
	PlanPartA = "Part A"
	PlanPartB = "Part B"
	PlanPartD = "Part D"
)

var segmentInfo = [...]struct {
	urlPrefix string
	plan      string
}{
	PartA: {urlPrefix: "part-a", plan: PlanPartA},
	PartB: {urlPrefix: "part-b", plan: PlanPartB},
	PartD: {urlPrefix: "part-d", plan: PlanPartD},
}

// Segments returns every segment in transformer order.
func Segments() []MedicareSegment {
	return []MedicareSegment{PartA, PartB, PartD}
}

// URLPrefix is the left half of the composite Coverage id.
func (s MedicareSegment) URLPrefix() string { return segmentInfo[s].urlPrefix }

// Plan is the plan constant for the segment.
func (s MedicareSegment) Plan() string { return segmentInfo[s].plan }

func (s MedicareSegment) String() string { return segmentInfo[s].plan }

// SelectByURLPrefix returns the segment whose URL prefix equals prefix.
func SelectByURLPrefix(prefix string) (MedicareSegment, bool) {
	for _, s := range Segments() {
		if s.URLPrefix() == prefix {
			return s, true
		}
	}
	return 0, false
}

// coverageIDPattern splits a composite id at the last '-' that is followed
// only by letters or digits.
var coverageIDPattern = regexp.MustCompile(`^(.*)-([\p{L}\p{Nd}]+)$`)

// FormatCoverageID builds "<segment prefix>-<beneficiary id>".
func FormatCoverageID(segment MedicareSegment, beneficiaryID string) string {
	return segment.URLPrefix() + "-" + beneficiaryID
}

// ParseCoverageID is the inverse of FormatCoverageID. An id that does not
// match the grammar, or names an unknown segment, is a NotFoundError.
func ParseCoverageID(id string) (MedicareSegment, string, error) {
	m := coverageIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, "", fhir.NewNotFoundError(ResourceType, id)
	}
	segment, ok := SelectByURLPrefix(m[1])
	if !ok {
		return 0, "", fhir.NewNotFoundError(ResourceType, id)
	}
	return segment, m[2], nil
}
