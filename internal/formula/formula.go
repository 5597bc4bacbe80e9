// Package formula evaluates the Math node's whitelisted arithmetic
// expressions: four arithmetic operators, modulo, parentheses, the
// identifiers inputN, and a small set of wrapped math helpers. Any other
// token is rejected before the expression ever reaches the evaluator.
package formula

import (
	"math"
	"regexp"
	"strings"

	"github.com/PaesslerAG/gval"

	"github.com/tagflow/engine/internal/flowerr"
)

// allowedTokenRE matches a normalised expression built entirely from
// digits, decimal points, whitespace, the four arithmetic operators,
// modulo, parentheses, commas, inputN identifiers, and the named helper
// function identifiers. Anything outside this character class is rejected
// before evaluation ever sees it.
var allowedTokenRE = regexp.MustCompile(
	`^[0-9a-zA-Z_.,()\s+\-*/%]*$`,
)

var identifierRE = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

var allowedIdentifiers = map[string]bool{
	"sqrt": true, "abs": true, "round": true, "floor": true,
	"ceil": true, "min": true, "max": true, "pow": true,
}

var inputIdentRE = regexp.MustCompile(`^input\d+$`)

// language is the restricted gval dialect: arithmetic plus the whitelisted
// helper functions, nothing else (no bitwise, string, or comparison
// operators, no ambient bindings).
var language = gval.NewLanguage(
	gval.Arithmetic(),
	gval.Function("sqrt", func(a float64) float64 { return math.Sqrt(a) }),
	gval.Function("abs", func(a float64) float64 { return math.Abs(a) }),
	gval.Function("round", func(a float64) float64 { return math.Round(a) }),
	gval.Function("floor", func(a float64) float64 { return math.Floor(a) }),
	gval.Function("ceil", func(a float64) float64 { return math.Ceil(a) }),
	gval.Function("min", func(a, b float64) float64 { return math.Min(a, b) }),
	gval.Function("max", func(a, b float64) float64 { return math.Max(a, b) }),
	gval.Function("pow", func(a, b float64) float64 { return math.Pow(a, b) }),
)

// Validate checks that expr, after normalisation, contains nothing outside
// the whitelisted character set and that every bare identifier is either an
// inputN reference or one of the named helpers.
func Validate(expr string) error {
	normalised := strings.TrimSpace(expr)
	if normalised == "" {
		return flowerr.New(flowerr.Validation, "formula is empty")
	}
	if !allowedTokenRE.MatchString(normalised) {
		return flowerr.Newf(flowerr.Validation, "formula %q contains a disallowed token", expr)
	}
	for _, ident := range identifierRE.FindAllString(normalised, -1) {
		if allowedIdentifiers[ident] {
			continue
		}
		if inputIdentRE.MatchString(ident) {
			continue
		}
		return flowerr.Newf(flowerr.Validation, "formula %q references disallowed identifier %q", expr, ident)
	}
	return nil
}

// Evaluate validates expr and then evaluates it against inputs, a map of
// inputN -> value. The result is always a float64.
func Evaluate(expr string, inputs map[string]float64) (float64, error) {
	if err := Validate(expr); err != nil {
		return 0, err
	}

	params := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		params[k] = v
	}

	result, err := language.Evaluate(expr, params)
	if err != nil {
		return 0, flowerr.Wrap(flowerr.Validation, err, "evaluate formula")
	}
	f, ok := toFloat(result)
	if !ok {
		return 0, flowerr.Newf(flowerr.Validation, "formula %q did not evaluate to a number", expr)
	}
	return f, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
