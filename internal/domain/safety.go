package domain

// SafetyStatus classifies an interaction check result.
type SafetyStatus string

const (
	// SafetySafe means no interactions or contraindications were flagged.
	SafetySafe SafetyStatus = "safe"
	// SafetyCaution means at least one warning was flagged.
	SafetyCaution SafetyStatus = "caution"
	// SafetyUnknown means the check could not be performed.
	SafetyUnknown SafetyStatus = "unknown"
)

// PatientProfile is the context for an interaction check.
type PatientProfile struct {
	Medicines  []string
	Allergies  []string
	Conditions []string
}

// IsEmpty reports whether the profile carries no information at all.
func (p PatientProfile) IsEmpty() bool {
	return len(p.Medicines) == 0 && len(p.Allergies) == 0 && len(p.Conditions) == 0
}

// SafetyReport is the outcome of an interaction check.
type SafetyReport struct {
	Status   SafetyStatus
	Warnings []string
}

// Safe reports whether the check completed and found nothing to flag.
func (r SafetyReport) Safe() bool { return r.Status == SafetySafe }
