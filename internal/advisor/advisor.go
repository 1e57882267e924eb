// Package advisor defines the optional enrichment step run on material
// changes.
//
// An Advisor reviews a change that passed validation but moved a value by
// more than the materiality threshold, and returns free-form analysis that is
// attached to the audit entry. It never gates a mutation: callers log and
// count failures and carry on without the analysis.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/erpgate/internal/ir"
)

// ErrUnavailable is returned by advisors with no backend configured.
var ErrUnavailable = errors.New("advisor unavailable")

// MaterialChange is the context handed to an Advisor.
type MaterialChange struct {
	Operation   ir.OperationKind
	Target      ir.Target
	Field       string
	Current     float64
	Proposed    float64
	ChangeRatio float64
	Actor       string
	Reason      string
}

// String renders the change for logs, e.g. "unit_price 100 -> 115 (+15.0%)".
func (c MaterialChange) String() string {
	sign := "+"
	if c.Proposed < c.Current {
		sign = "-"
	}
	return fmt.Sprintf("%s %s -> %s (%s%.1f%%)", c.Field,
		formatValue(c.Current), formatValue(c.Proposed), sign, c.ChangeRatio*100)
}

func formatValue(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Analysis is the advisor's output.
type Analysis struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Empty reports whether the analysis carries nothing worth recording.
func (a Analysis) Empty() bool {
	return strings.TrimSpace(a.Summary) == "" && len(a.Recommendations) == 0
}

// Context renders the analysis as machine context for an audit reason.
func (a Analysis) Context() string {
	if a.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("advisor: ")
	b.WriteString(strings.TrimSpace(a.Summary))
	for _, r := range a.Recommendations {
		b.WriteString("; ")
		b.WriteString(r)
	}
	return b.String()
}

// Advisor reviews material changes.
type Advisor interface {
	Review(ctx context.Context, change MaterialChange) (Analysis, error)
}

// Func adapts a function to Advisor.
type Func func(ctx context.Context, change MaterialChange) (Analysis, error)

func (f Func) Review(ctx context.Context, change MaterialChange) (Analysis, error) {
	return f(ctx, change)
}

// Noop is an Advisor without a backend. Every review fails with
// ErrUnavailable.
type Noop struct{}

func (Noop) Review(context.Context, MaterialChange) (Analysis, error) {
	return Analysis{}, ErrUnavailable
}

// Static always returns the same analysis. The scenario harness uses it.
type Static struct {
	Analysis Analysis
}

func (s Static) Review(ctx context.Context, _ MaterialChange) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	return s.Analysis, nil
}
