package models

import dErrors "parapet/pkg/domain-errors"

// RiskNature distinguishes standing register entries from instantiated ones.
// STATIC risks live on the register permanently and carry review scheduling;
// INSTANCE risks are stamped out of a template for a concrete engagement and
// are not periodically reviewed.
type RiskNature string

const (
	NatureStatic   RiskNature = "STATIC"
	NatureInstance RiskNature = "INSTANCE"
)

var validNatures = map[RiskNature]bool{
	NatureStatic:   true,
	NatureInstance: true,
}

// IsValid checks if the nature is one of the supported enum values.
func (n RiskNature) IsValid() bool {
	return validNatures[n]
}

func (n RiskNature) String() string {
	return string(n)
}

// ParseRiskNature constructs a RiskNature from external input. An empty value
// defaults to STATIC, matching the authoring flow's default.
//
// Errors: returns CodeInvalidInput when the value is non-empty and unsupported.
func ParseRiskNature(v string) (RiskNature, error) {
	if v == "" {
		return NatureStatic, nil
	}
	n := RiskNature(v)
	if !n.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid risk nature")
	}
	return n, nil
}

// Treatment is the chosen risk treatment category. TreatmentUnset means the
// decision has not been made yet; the policy check in the mitigation flow only
// fires once a treatment is recorded.
type Treatment string

const (
	TreatmentUnset  Treatment = ""
	TreatmentAccept Treatment = "ACCEPT"
	TreatmentModify Treatment = "MODIFY"
	TreatmentAvoid  Treatment = "AVOID"
	TreatmentShare  Treatment = "SHARE"
)

var validTreatments = map[Treatment]bool{
	TreatmentAccept: true,
	TreatmentModify: true,
	TreatmentAvoid:  true,
	TreatmentShare:  true,
}

// IsValid checks if the treatment is a supported category or unset.
func (t Treatment) IsValid() bool {
	return t == TreatmentUnset || validTreatments[t]
}

func (t Treatment) String() string {
	return string(t)
}

// ParseTreatment constructs a Treatment from external input. An empty value
// is the valid "not decided" state.
//
// Errors: returns CodeInvalidInput when the value is non-empty and unsupported.
func ParseTreatment(v string) (Treatment, error) {
	t := Treatment(v)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid treatment category")
	}
	return t, nil
}
