package domain

import "context"

// Event names published on the bus.
const (
	// EventInvitationSent fires after the invite mail went out and the sent
	// timestamp was recorded.
	EventInvitationSent = "invitation.sent"
	// EventInvitationRedeemed fires exactly once per accepted invitation.
	EventInvitationRedeemed = "invitation.redeemed"
	// EventUserSignedUp is emitted by the registration-completed callback and
	// consumed by the deferred-acceptance listener.
	EventUserSignedUp = "user.signed_up"
)

// InvitationSentPayload accompanies EventInvitationSent.
type InvitationSentPayload struct {
	Invitation *Invitation
	InviteURL  string
	InviterID  string
}

// InvitationRedeemedPayload accompanies EventInvitationRedeemed.
type InvitationRedeemedPayload struct {
	Email      string
	Invitation *Invitation
	InviterID  string
}

// UserSignedUpPayload accompanies EventUserSignedUp.
type UserSignedUpPayload struct {
	Email string
}

// EventBus is the notification port. Publishers call Emit with one of the
// event names above; subscribers register at startup. Consumers are out of
// scope here beyond the deferred-acceptance listener.
type EventBus interface {
	Emit(ctx context.Context, event string, payload any)
	Subscribe(event string, handler func(ctx context.Context, payload any))
}
