package nsd

// FailureCode is one of the client-visible failure kinds (§7).
type FailureCode int

const (
	FailureInternalError FailureCode = iota
	FailureAlreadyActive
	FailureMaxLimit
	FailureBadParameters
	FailureOperationNotRunning
)

func (c FailureCode) String() string {
	switch c {
	case FailureInternalError:
		return "INTERNAL_ERROR"
	case FailureAlreadyActive:
		return "ALREADY_ACTIVE"
	case FailureMaxLimit:
		return "MAX_LIMIT"
	case FailureBadParameters:
		return "BAD_PARAMETERS"
	case FailureOperationNotRunning:
		return "OPERATION_NOT_RUNNING"
	default:
		return "UNKNOWN"
	}
}
