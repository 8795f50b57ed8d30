package tasks

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier-backend/pkg/enums"
)

func decptr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestApplyGuestAutoAccept(t *testing.T) {
	tests := []struct {
		name       string
		current    enums.QuoteStatus
		status     enums.TaskStatus
		guestOwned bool
		amount     *decimal.Decimal
		want       enums.QuoteStatus
	}{
		{
			name:       "guest with positive amount approves",
			current:    enums.QuoteStatusPending,
			status:     enums.TaskStatusNotStarted,
			guestOwned: true,
			amount:     decptr(500),
			want:       enums.QuoteStatusApproved,
		},
		{
			name:       "registered client is untouched",
			current:    enums.QuoteStatusPending,
			status:     enums.TaskStatusNotStarted,
			guestOwned: false,
			amount:     decptr(500),
			want:       enums.QuoteStatusPending,
		},
		{
			name:       "guest without amount stays pending",
			current:    enums.QuoteStatusPending,
			status:     enums.TaskStatusNotStarted,
			guestOwned: true,
			amount:     nil,
			want:       enums.QuoteStatusPending,
		},
		{
			name:       "zero amount does not approve",
			current:    enums.QuoteStatusPending,
			status:     enums.TaskStatusNotStarted,
			guestOwned: true,
			amount:     decptr(0),
			want:       enums.QuoteStatusPending,
		},
		{
			name:       "cancelled guest task is not resurrected",
			current:    enums.QuoteStatusPending,
			status:     enums.TaskStatusCancelled,
			guestOwned: true,
			amount:     decptr(250),
			want:       enums.QuoteStatusPending,
		},
		{
			name:       "rejected quote is not resurrected",
			current:    enums.QuoteStatusRejected,
			status:     enums.TaskStatusInProgress,
			guestOwned: true,
			amount:     decptr(250),
			want:       enums.QuoteStatusRejected,
		},
		{
			name:       "re-applies idempotently on approved",
			current:    enums.QuoteStatusApproved,
			status:     enums.TaskStatusInProgress,
			guestOwned: true,
			amount:     decptr(250),
			want:       enums.QuoteStatusApproved,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyGuestAutoAccept(tc.current, tc.status, tc.guestOwned, tc.amount)
			if got != tc.want {
				t.Fatalf("got quote status %q, want %q", got, tc.want)
			}
		})
	}
}
