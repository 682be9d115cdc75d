// Package predicate compiles a single field's filter-rule state into the
// operator-suffixed predicate keys consumed by the query spec's where clause.
// A field's filter lives as a set of sibling keys ("field", "field__gte",
// "field__contains", ...) rather than a nested object; at most one shape
// (equality set, range, or string match) is populated per field at a time.
package predicate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Mr-7mdan/Bayan-sub002/core/dateutil"
)

// Operator suffixes appended to a field name to form predicate keys. The bare
// field name itself carries the equality set (an "IN" list).
const (
	SuffixNE          = "__ne"
	SuffixGT          = "__gt"
	SuffixGTE         = "__gte"
	SuffixLT          = "__lt"
	SuffixLTE         = "__lte"
	SuffixContains    = "__contains"
	SuffixNotContains = "__notcontains"
	SuffixStartsWith  = "__startswith"
	SuffixEndsWith    = "__endswith"
)

// operatorSuffixes lists every known suffix, used for stripping a predicate
// key back to its base field and for clearing a field's stale keys.
var operatorSuffixes = []string{
	SuffixNE,
	SuffixGTE,
	SuffixGT,
	SuffixLTE,
	SuffixLT,
	SuffixContains,
	SuffixNotContains,
	SuffixStartsWith,
	SuffixEndsWith,
}

// BaseField strips a known operator suffix from a predicate key, returning the
// underlying field name. Keys without a known suffix are returned unchanged.
func BaseField(key string) string {
	for _, suffix := range operatorSuffixes {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix)
		}
	}
	return key
}

// Keys returns every predicate key a field can occupy: the bare field name
// plus each operator-suffixed variant.
func Keys(field string) []string {
	keys := make([]string, 0, len(operatorSuffixes)+1)
	keys = append(keys, field)
	for _, suffix := range operatorSuffixes {
		keys = append(keys, field+suffix)
	}
	return keys
}

// FieldKind classifies a field's values for filtering purposes.
type FieldKind string

// Supported field kinds.
const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
)

// InferKind classifies a field by majority vote over a sample of its values.
// Nil samples abstain. A sample votes date if it parses as one of the flexible
// date encodings, number if it parses as a float, and string otherwise. Ties
// and empty samples resolve to string. Sparse or bimodal columns can be
// misclassified; this mirrors the picker's best-effort behavior.
func InferKind(samples []any) FieldKind {
	var dates, numbers, strs int
	for _, sample := range samples {
		if sample == nil {
			continue
		}
		if _, ok := dateutil.ParseFlexibleDate(sample); ok {
			dates++
			continue
		}
		if _, ok := toFloat64(sample); ok {
			numbers++
			continue
		}
		strs++
	}
	if dates > numbers && dates > strs {
		return KindDate
	}
	if numbers > dates && numbers > strs {
		return KindNumber
	}
	return KindString
}

// StringOp is a string-field rule operator.
type StringOp string

// Supported string operators.
const (
	StringOpContains    StringOp = "contains"
	StringOpNotContains StringOp = "not_contains"
	StringOpEq          StringOp = "eq"
	StringOpNe          StringOp = "ne"
	StringOpStartsWith  StringOp = "starts_with"
	StringOpEndsWith    StringOp = "ends_with"
)

// NumberOp is a number-field rule operator.
type NumberOp string

// Supported number operators.
const (
	NumberOpEq      NumberOp = "eq"
	NumberOpNe      NumberOp = "ne"
	NumberOpGt      NumberOp = "gt"
	NumberOpGte     NumberOp = "gte"
	NumberOpLt      NumberOp = "lt"
	NumberOpLte     NumberOp = "lte"
	NumberOpBetween NumberOp = "between"
)

// StringRule is the rule state for a string field.
type StringRule struct {
	Op    StringOp `json:"op"`
	Value string   `json:"value"`
}

// NumberRule is the rule state for a number field. Value2 is the upper bound
// for "between"; a nil bound is omitted from the compiled predicate.
type NumberRule struct {
	Op     NumberOp `json:"op"`
	Value  *float64 `json:"value,omitempty"`
	Value2 *float64 `json:"value2,omitempty"`
}

// DateRule is the rule state for a date field: either a named preset or a
// custom after/before/between range.
type DateRule struct {
	Preset dateutil.Preset  `json:"preset,omitempty"`
	Op     dateutil.RangeOp `json:"op,omitempty"`
	Start  string           `json:"start,omitempty"`
	End    string           `json:"end,omitempty"`
}

// Rule is one field's filter-rule UI state. Exactly one member is populated;
// an empty rule compiles to a patch that clears the field's predicate keys.
// Manual is a direct multi-select of literal values and takes precedence over
// the kind-specific members.
type Rule struct {
	String *StringRule `json:",omitempty"`
	Number *NumberRule `json:",omitempty"`
	Date   *DateRule   `json:",omitempty"`
	Manual []any       `json:",omitempty"`
}

// Signature returns a stable digest of the rule's logical state. Callers
// compare it against the previously compiled signature to skip re-emitting an
// identical patch.
func (r Rule) Signature() string {
	b, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Patch maps predicate keys to their new values. A nil value deletes the key
// when the patch is merged into a where clause.
type Patch map[string]any

// Merge applies the patch to a where clause in place, deleting keys whose
// patch value is nil.
func (p Patch) Merge(where map[string]any) {
	for key, value := range p {
		if value == nil {
			delete(where, key)
			continue
		}
		where[key] = value
	}
}

// Compile turns a field's rule state into a predicate patch. The patch always
// clears every key the field can occupy, then sets the keys belonging to the
// rule's shape, so setting one shape removes any previously set shape. Date
// rules emit only __gte/__lt for uniform half-open semantics; preset
// resolution is anchored at now. Compile is pure: the same inputs always yield
// an identical patch.
func Compile(field string, kind FieldKind, rule Rule, now time.Time) (Patch, error) {
	patch := make(Patch, len(operatorSuffixes)+1)
	for _, key := range Keys(field) {
		patch[key] = nil
	}

	if rule.Manual != nil {
		patch[field] = append([]any{}, rule.Manual...)
		return patch, nil
	}
	if rule.String == nil && rule.Number == nil && rule.Date == nil {
		// Cleared rule: the patch deletes every key for the field.
		return patch, nil
	}

	switch kind {
	case KindString:
		if rule.String == nil {
			return nil, fmt.Errorf("field %s: string rule required for kind %s", field, kind)
		}
		if err := compileString(patch, field, rule.String); err != nil {
			return nil, err
		}
	case KindNumber:
		if rule.Number == nil {
			return nil, fmt.Errorf("field %s: number rule required for kind %s", field, kind)
		}
		if err := compileNumber(patch, field, rule.Number); err != nil {
			return nil, err
		}
	case KindDate:
		if rule.Date == nil {
			return nil, fmt.Errorf("field %s: date rule required for kind %s", field, kind)
		}
		if err := compileDate(patch, field, rule.Date, now); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown field kind: %s", kind)
	}
	return patch, nil
}

func compileString(patch Patch, field string, rule *StringRule) error {
	switch rule.Op {
	case StringOpEq:
		patch[field] = []any{rule.Value}
	case StringOpNe:
		patch[field+SuffixNE] = rule.Value
	case StringOpContains:
		patch[field+SuffixContains] = rule.Value
	case StringOpNotContains:
		patch[field+SuffixNotContains] = rule.Value
	case StringOpStartsWith:
		patch[field+SuffixStartsWith] = rule.Value
	case StringOpEndsWith:
		patch[field+SuffixEndsWith] = rule.Value
	default:
		return fmt.Errorf("unknown string operator: %s", rule.Op)
	}
	return nil
}

func compileNumber(patch Patch, field string, rule *NumberRule) error {
	switch rule.Op {
	case NumberOpEq:
		if rule.Value != nil {
			patch[field] = []any{*rule.Value}
		}
	case NumberOpNe:
		if rule.Value != nil {
			patch[field+SuffixNE] = *rule.Value
		}
	case NumberOpGt:
		if rule.Value != nil {
			patch[field+SuffixGT] = *rule.Value
		}
	case NumberOpGte:
		if rule.Value != nil {
			patch[field+SuffixGTE] = *rule.Value
		}
	case NumberOpLt:
		if rule.Value != nil {
			patch[field+SuffixLT] = *rule.Value
		}
	case NumberOpLte:
		if rule.Value != nil {
			patch[field+SuffixLTE] = *rule.Value
		}
	case NumberOpBetween:
		// A missing bound is omitted rather than emitted half-formed.
		if rule.Value != nil {
			patch[field+SuffixGTE] = *rule.Value
		}
		if rule.Value2 != nil {
			patch[field+SuffixLTE] = *rule.Value2
		}
	default:
		return fmt.Errorf("unknown number operator: %s", rule.Op)
	}
	return nil
}

func compileDate(patch Patch, field string, rule *DateRule, now time.Time) error {
	var r dateutil.DateRange
	var err error
	if rule.Preset != "" {
		r, err = dateutil.ResolvePreset(rule.Preset, now)
	} else {
		r, err = dateutil.ResolveCustomRange(rule.Op, rule.Start, rule.End)
	}
	if err != nil {
		return err
	}
	if r.GTE != "" {
		patch[field+SuffixGTE] = r.GTE
	}
	if r.LT != "" {
		patch[field+SuffixLT] = r.LT
	}
	return nil
}
