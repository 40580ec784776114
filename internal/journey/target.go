package journey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/orato-voice/orato/internal/report"
)

// ErrUnparseableTarget indicates a target expression that does not follow
// the "<metric> <operator> <number>" grammar or names no recognized metric.
// Such milestones are permanently unsatisfiable; they are never matched by
// accident.
var ErrUnparseableTarget = errors.New("journey: unparseable target expression")

// Operator is a comparison operator in a target expression.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpDoubleEqual  Operator = "=="
)

// equalityEpsilon absorbs floating-point and LLM rounding noise when a
// target uses = or ==.
const equalityEpsilon = 0.1

// Target is a parsed milestone pass condition.
type Target struct {
	Metric    report.Metric
	Op        Operator
	Threshold float64
}

// Met applies the target's operator to a measured value. Equality operators
// match within [equalityEpsilon]; all others compare exactly.
func (t Target) Met(value float64) bool {
	switch t.Op {
	case OpGreater:
		return value > t.Threshold
	case OpGreaterEqual:
		return value >= t.Threshold
	case OpLess:
		return value < t.Threshold
	case OpLessEqual:
		return value <= t.Threshold
	case OpEqual, OpDoubleEqual:
		diff := value - t.Threshold
		if diff < 0 {
			diff = -diff
		}
		return diff <= equalityEpsilon
	default:
		return false
	}
}

// stripMarks removes combining marks after canonical decomposition, so
// "Entonação" normalizes to "entonacao".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases s and strips diacritics. Metric-token matching and
// drill matching both operate on normalized text.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// metricFamilies maps normalized keyword fragments to report metrics.
// Matching is by substring containment against the normalized metric token;
// order matters where one family's vocabulary could shadow another's (the
// filler family's "palavras de preenchimento" contains "palavras", so it is
// checked before the pace family).
var metricFamilies = []struct {
	metric   report.Metric
	keywords []string
}{
	{report.MetricFillerWords, []string{"preenchimento", "vicio", "muleta", "filler"}},
	{report.MetricClarity, []string{"clareza", "clarity", "clar"}},
	{report.MetricWPM, []string{"wpm", "ritmo", "palavras", "pace", "velocidade"}},
	{report.MetricIntonation, []string{"entonacao", "intonation", "variacao", "tom"}},
}

// resolveMetric maps a normalized metric token to a report metric.
func resolveMetric(token string) (report.Metric, bool) {
	for _, fam := range metricFamilies {
		for _, kw := range fam.keywords {
			if strings.Contains(token, kw) {
				return fam.metric, true
			}
		}
	}
	return 0, false
}

func isOperatorRune(r rune) bool {
	return r == '<' || r == '>' || r == '='
}

// ParseTarget parses an oracle-authored target expression of the form
// "<metric> <operator> <number>". The metric token is matched
// case-insensitively and diacritic-insensitively by substring containment;
// the operator is the first contiguous run of comparison characters, so
// multi-character operators are never mis-split.
func ParseTarget(expr string) (Target, error) {
	normalized := Normalize(expr)
	if normalized == "" {
		return Target{}, fmt.Errorf("%w: empty expression", ErrUnparseableTarget)
	}

	start := strings.IndexFunc(normalized, isOperatorRune)
	if start < 0 {
		return Target{}, fmt.Errorf("%w: no comparison operator in %q", ErrUnparseableTarget, expr)
	}
	end := start
	for end < len(normalized) && isOperatorRune(rune(normalized[end])) {
		end++
	}

	op := Operator(normalized[start:end])
	switch op {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual, OpDoubleEqual:
	default:
		return Target{}, fmt.Errorf("%w: unknown operator %q in %q", ErrUnparseableTarget, op, expr)
	}

	metricToken := strings.TrimSpace(normalized[:start])
	metric, ok := resolveMetric(metricToken)
	if !ok {
		return Target{}, fmt.Errorf("%w: unknown metric %q in %q", ErrUnparseableTarget, metricToken, expr)
	}

	numToken := strings.TrimSpace(normalized[end:])
	threshold, err := strconv.ParseFloat(numToken, 64)
	if err != nil {
		return Target{}, fmt.Errorf("%w: bad threshold %q in %q", ErrUnparseableTarget, numToken, expr)
	}

	return Target{Metric: metric, Op: op, Threshold: threshold}, nil
}
