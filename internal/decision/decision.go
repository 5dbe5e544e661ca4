// Package decision maps a classification onto one of the webhook's outcomes.
package decision

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/supportdesk/internal/intent"
	"github.com/linnemanlabs/supportdesk/internal/trigger"
)

// Status is the outcome reported to the caller.
type Status string

const (
	// StatusNoMatch means no trigger exists for the intent.
	StatusNoMatch Status = "no_match"

	// StatusRiskDetected means a trigger matched but a human must approve the reply.
	StatusRiskDetected Status = "risk_detected"

	// StatusAutoReplied means the trigger's reply was sent as-is.
	StatusAutoReplied Status = "auto_replied"

	// StatusFailed means classification failed; nothing was replied.
	StatusFailed Status = "processing_failed"
)

// Action tells the caller what happens next.
type Action string

const (
	ActionNone                  Action = ""
	ActionSendToHuman           Action = "send_to_human"
	ActionHumanApprovalRequired Action = "human_approval_required"
)

// Decision is the request-scoped outcome for one customer message.
type Decision struct {
	ID        string
	Status    Status
	Action    Action
	Reply     string
	Intent    intent.Intent
	Risk      bool // classifier risk OR trigger risk
	ModelRisk bool
	Model     string
	Message   string
	CreatedAt time.Time
}

// Escalated reports whether a human has to look at the message.
func (d *Decision) Escalated() bool {
	return d.Status == StatusNoMatch || d.Status == StatusRiskDetected
}

// Decide applies the trigger table to cls. It never fails: every
// classification lands in exactly one of the three success outcomes.
func Decide(cls *intent.Classification, table *trigger.Table) *Decision {
	d := &Decision{
		ID:        ulid.Make().String(),
		Intent:    cls.Intent,
		ModelRisk: cls.Risk,
		Model:     cls.Model,
		CreatedAt: time.Now(),
	}

	tr, ok := table.Select(cls.Intent)
	switch {
	case !ok:
		d.Status = StatusNoMatch
		d.Action = ActionSendToHuman
		d.Risk = cls.Risk
	case cls.Risk || tr.Risk:
		d.Status = StatusRiskDetected
		d.Action = ActionHumanApprovalRequired
		d.Reply = tr.Reply
		d.Risk = true
	default:
		d.Status = StatusAutoReplied
		d.Reply = tr.Reply
	}
	return d
}
