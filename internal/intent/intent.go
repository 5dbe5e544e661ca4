// Package intent defines the closed set of customer message intents and the
// per-request classification result produced by the classifier.
package intent

// Intent is the classified purpose of a customer message.
type Intent string

const (
	OrderCancel Intent = "order_cancel"
	RefundDelay Intent = "refund_delay"
	LegalThreat Intent = "legal_threat"
	Unknown     Intent = "unknown"
)

// Known lists every intent a trigger can be bound to, in prompt order.
var Known = []Intent{OrderCancel, RefundDelay, LegalThreat}

// Parse maps a label returned by the model onto the closed intent set.
// Anything unrecognised becomes Unknown.
func Parse(s string) Intent {
	switch Intent(s) {
	case OrderCancel, RefundDelay, LegalThreat:
		return Intent(s)
	default:
		return Unknown
	}
}

// Valid reports whether i is one of the bindable intents.
func (i Intent) Valid() bool {
	return Parse(string(i)) != Unknown
}

func (i Intent) String() string { return string(i) }

// Classification is the model's verdict for a single message.
type Classification struct {
	Intent Intent `json:"intent"`
	Risk   bool   `json:"risk"`

	// Label is the raw intent string the model returned, kept for logs.
	Label string `json:"-"`
	Model string `json:"-"`
}
