package chain

import "strings"

// Rules holds the configurable parts of every kind's chain. Zero values are
// replaced by defaults in WithDefaults.
type Rules struct {
	AccessLog   AccessLogRules   `yaml:"access_log"`
	Transaction TransactionRules `yaml:"transaction"`
	SystemError SystemErrorRules `yaml:"system_error"`
}

// AccessLogRules bounds the accepted HTTP status codes.
type AccessLogRules struct {
	MinStatus int `yaml:"min_status"`
	MaxStatus int `yaml:"max_status"`
}

// TransactionRules restricts currencies and amounts. An empty Currencies
// list accepts any three-letter code; MaxAmount 0 means no upper bound.
type TransactionRules struct {
	Currencies []string `yaml:"currencies"`
	MaxAmount  float64  `yaml:"max_amount"`
}

// SystemErrorRules lists the accepted severities (lower case).
type SystemErrorRules struct {
	Severities []string `yaml:"severities"`
}

// DefaultSeverities is used when no severities are configured.
var DefaultSeverities = []string{"debug", "info", "warning", "error", "critical"}

// WithDefaults returns a copy of r with unset values filled in and list
// entries normalised.
func (r Rules) WithDefaults() Rules {
	if r.AccessLog.MinStatus == 0 {
		r.AccessLog.MinStatus = 100
	}
	if r.AccessLog.MaxStatus == 0 {
		r.AccessLog.MaxStatus = 599
	}

	currencies := make([]string, 0, len(r.Transaction.Currencies))
	for _, c := range r.Transaction.Currencies {
		currencies = append(currencies, strings.ToUpper(strings.TrimSpace(c)))
	}
	r.Transaction.Currencies = currencies

	severities := r.SystemError.Severities
	if len(severities) == 0 {
		severities = DefaultSeverities
	}
	normalised := make([]string, 0, len(severities))
	for _, s := range severities {
		normalised = append(normalised, strings.ToLower(strings.TrimSpace(s)))
	}
	r.SystemError.Severities = normalised

	return r
}
