// Package notify delivers alert notifications. Delivery is fire-and-forget
// from the caller's point of view: the gateway is assumed at-least-once and
// the core performs no retries beyond what a provider does internally.
package notify

import "context"

// RecipientClass selects who a push goes to.
type RecipientClass string

const (
	RecipientResident RecipientClass = "resident"
	RecipientBoard    RecipientClass = "board"
)

// Gateway sends push notifications to a recipient class. Implementations
// are chosen at construction time by the composition root.
type Gateway interface {
	SendPush(ctx context.Context, recipient RecipientClass, title, message string) error
}
