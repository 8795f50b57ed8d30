package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier-backend/pkg/db/models"
	"github.com/atelierhq/atelier-backend/pkg/enums"
	"github.com/atelierhq/atelier-backend/pkg/logger"
	"github.com/atelierhq/atelier-backend/pkg/outbox"
)

const notificationConsumerName = "notification-worker"

type creatorRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListAdminIDs(ctx context.Context) ([]uuid.UUID, error)
}

type taskFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns domain events into in-app notification rows. Email delivery
// hangs off the same topic in a separate worker; this consumer only writes
// the bell-icon feed.
type Consumer struct {
	repo         creatorRepository
	tasks        taskFinder
	subscription *pubsub.Subscriber
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds the in-app notification consumer.
func NewConsumer(repo creatorRepository, tasks taskFinder, subscription *pubsub.Subscriber, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tasks == nil {
		return nil, fmt.Errorf("task finder required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		tasks:        tasks,
		subscription: subscription,
		manager:      manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("notification subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		eventType, err := enums.ParseOutboxEventType(msg.Attributes["event_type"])
		if err != nil {
			c.logg.Warn(ctx, "unknown event type on notification topic")
			msg.Ack()
			return
		}

		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			logCtx := c.logg.WithField(ctx, "message_id", msg.ID)
			c.logg.Error(logCtx, "failed to decode envelope", err)
			msg.Ack()
			return
		}

		if err := c.Process(ctx, eventType, envelope); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Process writes the notification rows for one event. Retryable failures
// return an error after clearing the idempotency marker so redelivery can
// succeed; malformed events return nil and are dropped.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return nil
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, notificationConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return err
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	rows, err := c.buildNotifications(ctx, eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "building notifications failed", err)
		_ = c.manager.Delete(ctx, notificationConsumerName, eventID)
		return err
	}

	for _, row := range rows {
		if err := c.repo.Create(ctx, row); err != nil {
			c.logg.Error(logCtx, "creating notification failed", err)
			_ = c.manager.Delete(ctx, notificationConsumerName, eventID)
			return err
		}
	}
	if len(rows) > 0 {
		c.logg.Info(c.logg.WithField(logCtx, "count", len(rows)), "notifications created")
	}
	return nil
}

func (c *Consumer) buildNotifications(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventTaskReceived:
		return c.taskReceived(envelope)
	case enums.EventNewTask:
		return c.newTask(ctx, envelope)
	case enums.EventQuoteSent:
		return c.quoteSent(envelope)
	case enums.EventQuoteResponded:
		return c.quoteResponded(ctx, envelope)
	case enums.EventStatusUpdate:
		return c.statusUpdate(envelope)
	case enums.EventNewMessage:
		return c.newMessage(ctx, envelope)
	case enums.EventNewFile:
		return c.newFile(ctx, envelope)
	case enums.EventAccountApproved, enums.EventAccountRejected,
		enums.EventAccountSuspended, enums.EventAccountReactivated:
		return c.accountChanged(eventType, envelope)
	case enums.EventGuestUpgraded:
		return c.guestUpgraded(envelope)
	default:
		return nil, nil
	}
}

func (c *Consumer) taskReceived(envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload taskPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	if payload.ClientID == nil {
		return nil, nil
	}
	return []*models.Notification{{
		UserID:  *payload.ClientID,
		Type:    enums.NotificationTypeTaskReceived,
		Title:   "Request received",
		Message: fmt.Sprintf("We received your request %q and will send a quote soon.", payload.TaskName),
		Link:    taskLink(payload.TaskID),
	}}, nil
}

func (c *Consumer) newTask(ctx context.Context, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload taskPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	return c.forAdmins(ctx, func(adminID uuid.UUID) *models.Notification {
		return &models.Notification{
			UserID:  adminID,
			Type:    enums.NotificationTypeNewTask,
			Title:   "New task submitted",
			Message: fmt.Sprintf("Task %q is waiting for a quote.", payload.TaskName),
			Link:    taskLink(payload.TaskID),
		}
	})
}

func (c *Consumer) quoteSent(envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload quotePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	if payload.ClientID == nil {
		return nil, nil
	}
	message := fmt.Sprintf("A quote is ready for %q.", payload.TaskName)
	if payload.Amount != nil {
		message = fmt.Sprintf("A quote of %s is ready for %q.", payload.Amount.StringFixed(2), payload.TaskName)
	}
	return []*models.Notification{{
		UserID:  *payload.ClientID,
		Type:    enums.NotificationTypeQuoteSent,
		Title:   "Quote ready",
		Message: message,
		Link:    taskLink(payload.TaskID),
	}}, nil
}

func (c *Consumer) quoteResponded(ctx context.Context, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload quotePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	title := "Quote approved"
	message := fmt.Sprintf("The client approved the quote for %q.", payload.TaskName)
	if payload.Action == "reject" {
		title = "Quote rejected"
		message = fmt.Sprintf("The client rejected the quote for %q.", payload.TaskName)
	}
	return c.forAdmins(ctx, func(adminID uuid.UUID) *models.Notification {
		return &models.Notification{
			UserID:  adminID,
			Type:    enums.NotificationTypeStatusUpdate,
			Title:   title,
			Message: message,
			Link:    taskLink(payload.TaskID),
		}
	})
}

func (c *Consumer) statusUpdate(envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload taskPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	if payload.ClientID == nil {
		return nil, nil
	}
	return []*models.Notification{{
		UserID:  *payload.ClientID,
		Type:    enums.NotificationTypeStatusUpdate,
		Title:   "Task status updated",
		Message: fmt.Sprintf("%q is now %s.", payload.TaskName, payload.Status),
		Link:    taskLink(payload.TaskID),
	}}, nil
}

func (c *Consumer) newMessage(ctx context.Context, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload messagePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	build := func(userID uuid.UUID) *models.Notification {
		return &models.Notification{
			UserID:  userID,
			Type:    enums.NotificationTypeNewMessage,
			Title:   "New message",
			Message: payload.Preview,
			Link:    taskLink(payload.TaskID),
		}
	}
	if payload.RecipientID != nil {
		return []*models.Notification{build(*payload.RecipientID)}, nil
	}
	return c.forAdmins(ctx, build)
}

func (c *Consumer) newFile(ctx context.Context, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload filePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	build := func(userID uuid.UUID) *models.Notification {
		title := "File uploaded"
		message := fmt.Sprintf("%q was attached to the task.", payload.OriginalName)
		if payload.Deliverable {
			title = "Deliverable ready"
			message = fmt.Sprintf("The deliverable %q is ready for download.", payload.OriginalName)
		}
		return &models.Notification{
			UserID:  userID,
			Type:    enums.NotificationTypeNewFile,
			Title:   title,
			Message: message,
			Link:    taskLink(payload.TaskID),
		}
	}

	// Admin uploads notify the task owner; client uploads notify admins.
	if envelope.Actor != nil && envelope.Actor.Role == string(enums.RoleAdmin) {
		task, err := c.tasks.FindByID(ctx, payload.TaskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if task.ClientID == nil {
			return nil, nil
		}
		return []*models.Notification{build(*task.ClientID)}, nil
	}
	return c.forAdmins(ctx, build)
}

func (c *Consumer) accountChanged(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload accountPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}

	var notifType enums.NotificationType
	var title, message string
	switch eventType {
	case enums.EventAccountApproved:
		notifType = enums.NotificationTypeAccountApproved
		title = "Account approved"
		message = "Your account has been approved. You can now submit requests."
	case enums.EventAccountRejected:
		notifType = enums.NotificationTypeAccountRejected
		title = "Account rejected"
		message = "Your registration was not approved."
	case enums.EventAccountSuspended:
		notifType = enums.NotificationTypeAccountSuspended
		title = "Account suspended"
		message = "Your account has been suspended. Contact us if you believe this is a mistake."
	default:
		notifType = enums.NotificationTypeAccountReactivated
		title = "Account reactivated"
		message = "Your account is active again."
	}

	return []*models.Notification{{
		UserID:  payload.UserID,
		Type:    notifType,
		Title:   title,
		Message: message,
	}}, nil
}

func (c *Consumer) guestUpgraded(envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	var payload guestUpgradePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id missing")
	}
	return []*models.Notification{{
		UserID:  payload.UserID,
		Type:    enums.NotificationTypeGuestUpgraded,
		Title:   "Order history imported",
		Message: fmt.Sprintf("%d earlier tasks were linked to your account.", payload.TasksTransferred),
	}}, nil
}

func (c *Consumer) forAdmins(ctx context.Context, build func(uuid.UUID) *models.Notification) ([]*models.Notification, error) {
	adminIDs, err := c.repo.ListAdminIDs(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]*models.Notification, 0, len(adminIDs))
	for _, id := range adminIDs {
		rows = append(rows, build(id))
	}
	return rows, nil
}

func taskLink(taskID uuid.UUID) *string {
	link := fmt.Sprintf("/tasks/%s", taskID)
	return &link
}

type taskPayload struct {
	TaskID   uuid.UUID  `json:"taskId"`
	TaskName string     `json:"taskName"`
	ClientID *uuid.UUID `json:"clientId,omitempty"`
	Status   string     `json:"status"`
}

type quotePayload struct {
	TaskID   uuid.UUID        `json:"taskId"`
	TaskName string           `json:"taskName"`
	ClientID *uuid.UUID       `json:"clientId,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Action   string           `json:"action,omitempty"`
}

type messagePayload struct {
	TaskID      uuid.UUID  `json:"taskId"`
	RecipientID *uuid.UUID `json:"recipientId,omitempty"`
	Preview     string     `json:"preview"`
}

type filePayload struct {
	TaskID       uuid.UUID `json:"taskId"`
	OriginalName string    `json:"originalName"`
	Deliverable  bool      `json:"deliverable"`
}

type accountPayload struct {
	UserID uuid.UUID `json:"userId"`
}

type guestUpgradePayload struct {
	UserID           uuid.UUID `json:"userId"`
	TasksTransferred int64     `json:"tasksTransferred"`
}
