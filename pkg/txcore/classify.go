package txcore

// Classification - how a server error must be handled once it has been
// returned to the caller.
type Classification int

const (
	// ClassLocal - the error stays local to the offending call. Inside a
	// transaction it marks the context failed; the connection survives.
	ClassLocal Classification = iota
	// ClassDisconnect - the error is returned to the caller first, then an
	// asynchronous termination request is issued for the connection.
	ClassDisconnect
)

// DisconnectPolicy - immutable set of SQLSTATE codes that force connection
// termination after the triggering error has been returned to the caller.
// Read-only during classification.
type DisconnectPolicy struct {
	codes map[string]struct{}
}

// NewDisconnectPolicy - DisconnectPolicy constructor.
func NewDisconnectPolicy(codes ...string) DisconnectPolicy {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}

	return DisconnectPolicy{codes: set}
}

// Contains reports whether the SQLSTATE code is part of the policy.
func (p DisconnectPolicy) Contains(code string) bool {
	_, ok := p.codes[code]

	return ok
}

// ErrorClassifier maps a server error to local or disconnect handling by
// consulting the configured DisconnectPolicy. A plain lookup, no dynamic
// dispatch.
type ErrorClassifier struct {
	policy DisconnectPolicy
}

// NewErrorClassifier - ErrorClassifier constructor.
func NewErrorClassifier(policy DisconnectPolicy) ErrorClassifier {
	return ErrorClassifier{policy: policy}
}

// Classify - map the server error to its handling class.
func (c ErrorClassifier) Classify(err *ServerError) Classification {
	if c.policy.Contains(err.Code) {
		return ClassDisconnect
	}

	return ClassLocal
}
