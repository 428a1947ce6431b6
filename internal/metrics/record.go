package metrics

// Outcome describes how one record was produced.
type Outcome struct {
	Code       string
	Diagnostic bool
	Matched    bool
	Resolved   bool
}

// Observe counts a processed record.
func Observe(o Outcome) {
	code := o.Code
	if code == "" {
		code = "none"
	}
	MessagesProcessed.WithLabelValues(code).Inc()

	switch {
	case !o.Diagnostic:
		Classifications.WithLabelValues(ResultAutoResponder).Inc()
	case o.Matched:
		Classifications.WithLabelValues(ResultMatched).Inc()
	default:
		Classifications.WithLabelValues(ResultUnknown).Inc()
	}

	if !o.Resolved {
		RecipientUnresolved.Inc()
	}
}
