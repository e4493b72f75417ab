// Package events defines event types and structures for workflow execution and billing notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topics.
const ExecutionTopic = "hesab.workflow.executions"      // Workflow run outcomes
const NotificationTopic = "hesab.billing.notifications" // User-facing billing notifications

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow execution lifecycle events.
	WorkflowExecutionCompletedEvent            EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent               EventType = "workflow.execution.failed"
	WorkflowExecutionConfirmationRequiredEvent EventType = "workflow.execution.confirmation_required"

	// Billing events.
	BillingNotificationEvent EventType = "billing.notification"
)

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType EventType) string {
	if eventType == BillingNotificationEvent {
		return NotificationTopic
	}

	return ExecutionTopic
}

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	Workflow    string         `json:"workflow"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	UserID         string   `json:"user_id"`
	StepsCompleted []string `json:"steps_completed"`
	Warnings       []string `json:"warnings,omitempty"`
	DurationMs     int64    `json:"duration_ms"`
}

func (e WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	UserID     string   `json:"user_id"`
	Error      string   `json:"error"`
	Errors     []string `json:"errors"`
	DurationMs int64    `json:"duration_ms"`
}

func (e WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

type WorkflowExecutionConfirmationRequired struct {
	BaseEvent

	UserID         string   `json:"user_id"`
	Message        string   `json:"message"`
	StepsCompleted []string `json:"steps_completed"`
}

func (e WorkflowExecutionConfirmationRequired) GetType() EventType {
	return WorkflowExecutionConfirmationRequiredEvent
}

// BillingNotification asks the notification service to tell a user about a billing change.
type BillingNotification struct {
	BaseEvent

	UserID        string `json:"user_id"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	Amount        string `json:"amount,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func (e BillingNotification) GetType() EventType {
	return BillingNotificationEvent
}

func NewBaseEvent(eventType EventType, workflow, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		Workflow:    workflow,
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}
