package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending low-stock alert emails.
	TaskTypeSendEmail = "mail:send"
	// TaskStockRebuild triggers the nightly balance-cache rebuild.
	TaskStockRebuild = "stock:rebuild"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Delivery goes through SMTP when a mailer is wired; the default handler
	// only logs so the queue drains in environments without one.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// StockRebuildPayload carries scheduling metadata.
type StockRebuildPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStockRebuildTask constructs an Asynq task for the balance rebuild.
func NewStockRebuildTask(at time.Time) (*asynq.Task, error) {
	payload := StockRebuildPayload{ScheduledFor: at}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockRebuild, body, asynq.Queue(QueueDefault)), nil
}

// BalanceRebuilder recomputes the stock balance cache from the ledger.
type BalanceRebuilder interface {
	RebuildBalances(ctx context.Context) (int, error)
}

// NewStockRebuildHandler returns the handler for TaskStockRebuild tasks.
func NewStockRebuildHandler(rebuilder BalanceRebuilder) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload StockRebuildPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		rebuilt, err := rebuilder.RebuildBalances(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("[jobs] stock rebuild done pairs=%d scheduled_for=%s\n", rebuilt, payload.ScheduledFor.Format(time.RFC3339))
		return nil
	}
}
