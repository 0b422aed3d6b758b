package log

import "go.uber.org/zap"

var (
	// Internal mark the error severe, due to issues in code.
	Internal = zap.String("severe_error", "internal")

	// Rejected marks an error returned by the DNS provider API itself, as
	// opposed to a transport failure.
	Rejected = zap.String("error_class", "rejected")
	// Transport marks an error that never reached the DNS provider API.
	Transport = zap.String("error_class", "transport")
)
