package queryir

import (
	"fmt"
	"regexp"
)

// payloadPath is the accepted shape of PayloadEquals.Path: one identifier.
// Paths are spliced into a JSON path expression, so nothing else is allowed.
var payloadPath = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidationError reports an invalid query.
type ValidationError struct {
	Path    string // location in the predicate tree, e.g. "filter.and[1]"
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("query %s: %s", e.Path, e.Message)
}

// Validate checks that q only uses the portable fragment.
func Validate(q Select) error {
	if q.Limit < 0 {
		return &ValidationError{Path: "limit", Message: fmt.Sprintf("must not be negative, got %d", q.Limit)}
	}
	if q.Filter == nil {
		return nil
	}
	return validatePredicate(q.Filter, "filter")
}

func validatePredicate(p Predicate, path string) error {
	switch pred := p.(type) {
	case *Equals:
		return validateEquals(*pred, path)
	case Equals:
		return validateEquals(pred, path)
	case *PayloadEquals:
		return validatePayloadEquals(*pred, path)
	case PayloadEquals:
		return validatePayloadEquals(pred, path)
	case *KindIn, KindIn:
		return nil
	case *SeqRange:
		return validateSeqRange(*pred, path)
	case SeqRange:
		return validateSeqRange(pred, path)
	case *And:
		return validateAnd(*pred, path)
	case And:
		return validateAnd(pred, path)
	case nil:
		return &ValidationError{Path: path, Message: "nil predicate"}
	default:
		return &ValidationError{Path: path, Message: fmt.Sprintf("unsupported predicate %T", p)}
	}
}

func validateEquals(e Equals, path string) error {
	switch e.Field {
	case FieldSession, FieldKind:
		if _, ok := e.Value.(string); !ok {
			return &ValidationError{Path: path, Message: fmt.Sprintf("%s needs a string, got %T", e.Field, e.Value)}
		}
	case FieldSeq:
		switch e.Value.(type) {
		case int, int64:
		default:
			return &ValidationError{Path: path, Message: fmt.Sprintf("seq needs an integer, got %T", e.Value)}
		}
	default:
		return &ValidationError{Path: path, Message: fmt.Sprintf("unknown field %q", e.Field)}
	}
	return nil
}

func validatePayloadEquals(e PayloadEquals, path string) error {
	if !payloadPath.MatchString(e.Path) {
		return &ValidationError{Path: path, Message: fmt.Sprintf("invalid payload path %q", e.Path)}
	}
	return validateLiteral(e.Value, path)
}

// validateLiteral accepts the values canonical JSON payloads can hold.
func validateLiteral(v any, path string) error {
	switch v.(type) {
	case string, bool, int, int64:
		return nil
	case float32, float64:
		return &ValidationError{Path: path, Message: "floats are not comparable literals"}
	case nil:
		return &ValidationError{Path: path, Message: "null literal"}
	default:
		return &ValidationError{Path: path, Message: fmt.Sprintf("unsupported literal %T", v)}
	}
}

func validateSeqRange(r SeqRange, path string) error {
	if r.From < 0 || r.To < 0 {
		return &ValidationError{Path: path, Message: "seq bounds must not be negative"}
	}
	if r.To != 0 && r.From > r.To {
		return &ValidationError{Path: path, Message: fmt.Sprintf("empty range %d..%d", r.From, r.To)}
	}
	return nil
}

func validateAnd(a And, path string) error {
	for i, p := range a.Predicates {
		if err := validatePredicate(p, fmt.Sprintf("%s.and[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}
