package api

// Outcome classifies a write call's response for the migration routines.
type Outcome int

const (
	// OutcomeSuccess is any 2xx response.
	OutcomeSuccess Outcome = iota
	// OutcomeIgnore is an allow-listed status treated as success, logged only.
	OutcomeIgnore
	// OutcomeWarning records a warning finding; the item counts as failed but
	// the surrounding routine continues.
	OutcomeWarning
	// OutcomeError records an error finding; the item counts as failed.
	OutcomeError
)

// Rules holds per-call status allow-lists. Unlisted 4xx/5xx classify as error.
type Rules struct {
	Ignore  []int
	Warning []int
}

// Classify maps a status code through the rules.
func (r Rules) Classify(statusCode int) Outcome {
	if statusCode >= 200 && statusCode < 300 {
		return OutcomeSuccess
	}
	for _, code := range r.Ignore {
		if code == statusCode {
			return OutcomeIgnore
		}
	}
	for _, code := range r.Warning {
		if code == statusCode {
			return OutcomeWarning
		}
	}
	return OutcomeError
}
