// Package trigger holds the canned reply policy keyed by intent.
package trigger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linnemanlabs/supportdesk/internal/intent"
)

// Trigger is a canned reply bound to one intent.
type Trigger struct {
	Name  intent.Intent `yaml:"name"`
	Reply string        `yaml:"reply"`
	Risk  bool          `yaml:"risk"`
}

// Table is the immutable intent -> trigger mapping. Build it once at startup
// with Default, New or Load and share the pointer; nothing mutates it after.
type Table struct {
	orderCancel *Trigger
	refundDelay *Trigger
	legalThreat *Trigger
}

// Default returns the built-in trigger table.
func Default() *Table {
	t, err := New([]Trigger{
		{
			Name:  intent.OrderCancel,
			Reply: "Your order was cancelled due to a system update. Refund will be processed within 3–5 working days.",
		},
		{
			Name:  intent.RefundDelay,
			Reply: "We understand your concern. Refunds usually take 5–7 working days depending on your bank.",
		},
		{
			Name:  intent.LegalThreat,
			Reply: "Your concern has been escalated to our senior support team.",
			Risk:  true,
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// New builds a table from triggers. Names must be known intents, unique,
// and carry a non-empty reply. Intents left out simply never match.
func New(triggers []Trigger) (*Table, error) {
	t := &Table{}
	var errs []error
	for i := range triggers {
		tr := triggers[i]
		if strings.TrimSpace(tr.Reply) == "" {
			errs = append(errs, fmt.Errorf("trigger %q: reply is empty", tr.Name))
			continue
		}
		slot := t.slot(tr.Name)
		if slot == nil {
			errs = append(errs, fmt.Errorf("trigger %q: not a known intent", tr.Name))
			continue
		}
		if *slot != nil {
			errs = append(errs, fmt.Errorf("trigger %q: duplicate name", tr.Name))
			continue
		}
		*slot = &tr
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

func (t *Table) slot(in intent.Intent) **Trigger {
	switch in {
	case intent.OrderCancel:
		return &t.orderCancel
	case intent.RefundDelay:
		return &t.refundDelay
	case intent.LegalThreat:
		return &t.legalThreat
	default:
		return nil
	}
}

// Select returns the trigger bound to in. Unknown, and any intent without a
// configured trigger, reports no match.
func (t *Table) Select(in intent.Intent) (Trigger, bool) {
	var tr *Trigger
	switch in {
	case intent.OrderCancel:
		tr = t.orderCancel
	case intent.RefundDelay:
		tr = t.refundDelay
	case intent.LegalThreat:
		tr = t.legalThreat
	case intent.Unknown:
		return Trigger{}, false
	default:
		return Trigger{}, false
	}
	if tr == nil {
		return Trigger{}, false
	}
	return *tr, true
}

// Triggers returns a copy of the configured triggers in intent order.
func (t *Table) Triggers() []Trigger {
	out := make([]Trigger, 0, len(intent.Known))
	for _, in := range intent.Known {
		if tr, ok := t.Select(in); ok {
			out = append(out, tr)
		}
	}
	return out
}
