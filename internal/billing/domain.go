// internal/billing/domain.go
package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pointnexus/internal/members"
)

// Event types delivered by the payment provider. Delivery is
// at-least-once and unordered.
const (
	EventCheckoutCompleted  = "checkout.completed"
	EventSubscriptionUpdate = "subscription.updated"
	EventSubscriptionDelete = "subscription.deleted"
	EventPaymentFailed      = "invoice.payment_failed"
	EventInvoicePaid        = "invoice.paid"
)

// Event is the parsed provider envelope.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      EventData `json:"data"`
}

// EventData carries the subscription facts the reconciler acts on.
// MemberID is the community member the provider was told about at
// checkout time.
type EventData struct {
	MemberID       uuid.UUID `json:"member_id"`
	Period         string    `json:"period,omitempty"` // billing period, YYYY-MM
	Status         string    `json:"status,omitempty"`
	MembershipType string    `json:"membership_type,omitempty"`
}

// ParseEvent decodes a provider payload after its signature has been
// verified.
func ParseEvent(payload []byte) (*Event, error) {
	ev := &Event{}
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, fmt.Errorf("parse event payload: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("event missing id or type")
	}
	if ev.Data.MemberID == uuid.Nil {
		return nil, fmt.Errorf("event missing member id")
	}
	return ev, nil
}

// Effects is the side-effect list a transition produces. Every effect
// is idempotent, so replaying an event re-applies them harmlessly.
type Effects struct {
	// IssueMemberNo assigns the membership identifier, guarded by
	// "only assign if absent".
	IssueMemberNo bool
	// InviterBonus grants the inviter's subscription bonus, deduped by
	// the subscribing member's id.
	InviterBonus bool
	// RenewalPeriod, when set, grants the renewal bonus deduped by the
	// billing period.
	RenewalPeriod string
}

// Apply is the pure state-transition function (currentState, event) ->
// (newState, effects). An event describing a state the member already
// reached, or one that arrives before its precondition, yields
// next == current and empty effects: a no-op, not an error.
func Apply(current members.SubscriptionStatus, ev *Event) (members.SubscriptionStatus, Effects) {
	switch ev.Type {
	case EventCheckoutCompleted:
		switch current {
		case members.SubInactive, members.SubCanceled, members.SubFree, members.SubFreeTier:
			return members.SubActive, Effects{IssueMemberNo: true, InviterBonus: true}
		case members.SubActive:
			// Replay after activation: state holds, effects re-run
			// idempotently in case the first delivery died between the
			// status commit and the grants.
			return current, Effects{IssueMemberNo: true, InviterBonus: true}
		}
		return current, Effects{}

	case EventInvoicePaid:
		switch current {
		case members.SubActive:
			return current, Effects{RenewalPeriod: ev.Data.Period}
		case members.SubPastDue:
			return members.SubActive, Effects{RenewalPeriod: ev.Data.Period}
		}
		return current, Effects{}

	case EventPaymentFailed:
		if current == members.SubActive {
			return members.SubPastDue, Effects{}
		}
		return current, Effects{}

	case EventSubscriptionUpdate:
		next := members.SubscriptionStatus(ev.Data.Status)
		if next != members.SubActive && next != members.SubPastDue && next != members.SubCanceled {
			return current, Effects{}
		}
		if current == members.SubActive || current == members.SubPastDue {
			return next, Effects{}
		}
		return current, Effects{}

	case EventSubscriptionDelete:
		if current == members.SubActive || current == members.SubPastDue {
			return members.SubCanceled, Effects{}
		}
		return current, Effects{}
	}

	return current, Effects{}
}
