package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateTask        OutboxAggregateType = "task"
	AggregateUser        OutboxAggregateType = "user"
	AggregateGuestClient OutboxAggregateType = "guest_client"
	AggregateMessage     OutboxAggregateType = "message"
	AggregateFile        OutboxAggregateType = "file"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTask,
	AggregateUser,
	AggregateGuestClient,
	AggregateMessage,
	AggregateFile,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventTaskReceived       OutboxEventType = "task_received"
	EventNewTask            OutboxEventType = "new_task"
	EventQuoteSent          OutboxEventType = "quote_sent"
	EventQuoteResponded     OutboxEventType = "quote_responded"
	EventStatusUpdate       OutboxEventType = "status_update"
	EventNewMessage         OutboxEventType = "new_message"
	EventNewFile            OutboxEventType = "new_file"
	EventAccountApproved    OutboxEventType = "account_approved"
	EventAccountRejected    OutboxEventType = "account_rejected"
	EventAccountSuspended   OutboxEventType = "account_suspended"
	EventAccountReactivated OutboxEventType = "account_reactivated"
	EventGuestUpgraded      OutboxEventType = "guest_upgraded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTaskReceived,
	EventNewTask,
	EventQuoteSent,
	EventQuoteResponded,
	EventStatusUpdate,
	EventNewMessage,
	EventNewFile,
	EventAccountApproved,
	EventAccountRejected,
	EventAccountSuspended,
	EventAccountReactivated,
	EventGuestUpgraded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
