package rebirthdto

// DomainError is a failed command expressed as a message catalog key and
// the template data that key needs.
type DomainError struct {
	Code      string
	Data      map[string]any
	Retryable bool
	Cause     error
}

func (e *DomainError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Cause != nil && e.Code != "":
		return e.Code + ": " + e.Cause.Error()
	case e.Code != "":
		return e.Code
	case e.Cause != nil:
		return e.Cause.Error()
	}
	return "rebirth service error"
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
