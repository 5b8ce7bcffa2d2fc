package enums

import "fmt"

// CRMStatus records the follow-up state logged by support agents on an order.
type CRMStatus string

const (
	CRMStatusPending   CRMStatus = "pending"
	CRMStatusContacted CRMStatus = "contacted"
	CRMStatusConfirmed CRMStatus = "confirmed"
	CRMStatusNoAnswer  CRMStatus = "no_answer"
	CRMStatusRejected  CRMStatus = "rejected"
)

var validCRMStatuses = []CRMStatus{
	CRMStatusPending,
	CRMStatusContacted,
	CRMStatusConfirmed,
	CRMStatusNoAnswer,
	CRMStatusRejected,
}

// String implements fmt.Stringer.
func (c CRMStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CRMStatus.
func (c CRMStatus) IsValid() bool {
	for _, candidate := range validCRMStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCRMStatus converts raw input into a CRMStatus.
func ParseCRMStatus(value string) (CRMStatus, error) {
	for _, candidate := range validCRMStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid crm status %q", value)
}
