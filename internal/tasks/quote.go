package tasks

import (
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier-backend/pkg/enums"
)

// ApplyGuestAutoAccept implements the guest quote policy: guests have no
// session to respond to quotes, so a positive amount on a guest-owned task is
// treated as pre-agreed and the quote flips straight to approved. Every
// write path (create, update, send quote) funnels through this one function
// so the policy cannot drift between call sites.
//
// Cancelled or rejected tasks are left alone: a positive-amount update does
// not resurrect a dead quote. Re-quoting one of those requires moving the
// task out of its terminal state first.
func ApplyGuestAutoAccept(current enums.QuoteStatus, status enums.TaskStatus, guestOwned bool, amount *decimal.Decimal) enums.QuoteStatus {
	if !guestOwned {
		return current
	}
	if amount == nil || !amount.IsPositive() {
		return current
	}
	if status == enums.TaskStatusCancelled || current == enums.QuoteStatusRejected {
		return current
	}
	return enums.QuoteStatusApproved
}
