package events

import "strings"

// Canonical event vocabulary. Every provider-specific webhook shape is
// normalized into one of these before routing or outbound delivery.
const (
	CustomerCreated = "customer.created"
	CustomerUpdated = "customer.updated"
	CustomerDeleted = "customer.deleted"

	JobCreated   = "job.created"
	JobUpdated   = "job.updated"
	JobCompleted = "job.completed"
	JobCancelled = "job.cancelled"

	InvoiceCreated = "invoice.created"
	InvoiceSent    = "invoice.sent"
	InvoicePaid    = "invoice.paid"
	InvoiceOverdue = "invoice.overdue"

	PaymentReceived = "payment.received"
	PaymentFailed   = "payment.failed"
	PaymentRefunded = "payment.refunded"

	ReferralCreated   = "referral.created"
	ReferralConverted = "referral.converted"
)

const (
	CategoryCustomer = "customer"
	CategoryJob      = "job"
	CategoryInvoice  = "invoice"
	CategoryPayment  = "payment"
	CategoryReferral = "referral"
)

// Category extracts the domain category from a canonical event name,
// e.g. "invoice.paid" -> "invoice".
func Category(event string) string {
	if i := strings.IndexByte(event, '.'); i > 0 {
		return event[:i]
	}
	return event
}
