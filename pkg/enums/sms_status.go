package enums

// SMSStatus records the outcome of a dispatched text message.
type SMSStatus string

const (
	SMSStatusQueued SMSStatus = "queued"
	SMSStatusSent   SMSStatus = "sent"
	SMSStatusFailed SMSStatus = "failed"
)

// String implements fmt.Stringer.
func (s SMSStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SMSStatus.
func (s SMSStatus) IsValid() bool {
	switch s {
	case SMSStatusQueued, SMSStatusSent, SMSStatusFailed:
		return true
	}
	return false
}
