package events

// Topic constants for payment lifecycle events emitted by the core.
const (
	TopicPaymentInitiated = "payment.initiated"
	TopicPaymentPaid      = "payment.paid"
	TopicPaymentFailed    = "payment.failed"
	TopicPaymentExpired   = "payment.expired"
)
