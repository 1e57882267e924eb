package gate

import "fmt"

// Rejection codes (G100-G199).
const (
	// Line state (G100)
	CodeLineState = "G101" // status forbids the change
	CodeReceived  = "G102" // quantity already received

	// Proposed values (G110)
	CodeDatePast        = "G110" // date before today
	CodeDateBeforeOrder = "G111" // date before order date
	CodeNonPositive     = "G112" // value must be > 0
	CodeBelowReceived   = "G113" // quantity below received

	// Documents (G120)
	CodeNoLines     = "G120" // document without lines
	CodeShipmentRef = "G121" // not exactly one vendor shipment reference
	CodeUnknownLine = "G122" // referenced line does not exist
	CodeOverReceipt = "G123" // quantity exceeds outstanding
	CodeOverReturn  = "G124" // quantity exceeds received
)

// Default materiality thresholds, as a fraction of the current value.
const (
	DefaultPriceThreshold    = 0.10
	DefaultQuantityThreshold = 0.20
)

// Verdict is the outcome of one validator call. The zero value accepts a
// non-material change.
type Verdict struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
	Code   string `json:"code,omitempty"`

	// Material is set on accepted changes that exceed the threshold.
	Material bool `json:"material,omitempty"`
	// ChangeRatio is |proposed-current|/current. It is 1 when the current
	// value is zero or negative.
	ChangeRatio float64 `json:"change_ratio,omitempty"`
}

// Rejected reports whether the change was refused.
func (v Verdict) Rejected() bool {
	return v.Code != ""
}

// String renders a rejection like "[G110] new_date: ...".
func (v Verdict) String() string {
	if !v.Rejected() {
		return "accepted"
	}
	return fmt.Sprintf("[%s] %s: %s", v.Code, v.Field, v.Reason)
}

// Accept returns an accepting verdict.
func Accept() Verdict {
	return Verdict{}
}

// Reject returns a rejecting verdict.
func Reject(code, field, format string, args ...any) Verdict {
	return Verdict{Code: code, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// assess compares a proposed value with the current one.
func assess(current, proposed, threshold float64) Verdict {
	if current <= 0 {
		return Verdict{Material: true, ChangeRatio: 1}
	}
	ratio := abs(proposed-current) / current
	return Verdict{Material: ratio > threshold+tolerance, ChangeRatio: ratio}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
