// Package gexchange holds types shared between message handlers and transports.
package gexchange

// Feedback is what a message handler reports back to the transport
// about a single inbound message.
//
// Transports that score peers may reward accepted messages
// and penalize rejected ones.
type Feedback uint8

//go:generate go run golang.org/x/tools/cmd/stringer -type Feedback -trimprefix=Feedback
const (
	// FeedbackUnspecified is the zero value.
	// A handler returning it has a bug.
	FeedbackUnspecified Feedback = iota

	// FeedbackAccepted means the message was valid and new.
	FeedbackAccepted

	// FeedbackRejected means the message was invalid
	// and the sender should be penalized.
	FeedbackRejected

	// FeedbackIgnored means the message is dropped without penalty,
	// typically a duplicate or something not yet actionable.
	FeedbackIgnored

	// FeedbackRejectAndDisconnect means the message looked malicious
	// and the transport should drop the sender.
	FeedbackRejectAndDisconnect
)
