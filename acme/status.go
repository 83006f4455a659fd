package acme

// Status is the server-side state of an Account, Order, Authorization or
// Challenge resource.
//
// To understand the status changes specified by ACME see
// https://tools.ietf.org/html/rfc8555#section-7.1.6
type Status string

const (
	StatusPending     Status = "pending"
	StatusReady       Status = "ready"
	StatusProcessing  Status = "processing"
	StatusValid       Status = "valid"
	StatusInvalid     Status = "invalid"
	StatusDeactivated Status = "deactivated"
	StatusExpired     Status = "expired"
	StatusRevoked     Status = "revoked"
	// StatusUnknown is used for any status string this library does not
	// recognize, so new server-side statuses never fail parsing.
	StatusUnknown Status = "unknown"
)

var knownStatuses = map[string]Status{
	"pending":     StatusPending,
	"ready":       StatusReady,
	"processing":  StatusProcessing,
	"valid":       StatusValid,
	"invalid":     StatusInvalid,
	"deactivated": StatusDeactivated,
	"expired":     StatusExpired,
	"revoked":     StatusRevoked,
	"unknown":     StatusUnknown,
}

// ParseStatus maps a status string from a server response to a Status. Any
// unrecognized input maps to StatusUnknown.
func ParseStatus(s string) Status {
	if status, ok := knownStatuses[s]; ok {
		return status
	}
	return StatusUnknown
}

func (s Status) String() string {
	return string(s)
}
