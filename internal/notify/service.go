// Package notify delivers low-stock alerts raised by the stock ledger engine.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colorapp/merchstock/internal/catalog"
	"github.com/colorapp/merchstock/internal/ledger"
	"github.com/colorapp/merchstock/jobs"
)

// MailEnqueuer queues alert emails for background delivery.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// CatalogPort resolves alert display data and recipients.
type CatalogPort interface {
	GetItem(ctx context.Context, id int64) (catalog.Item, error)
	GetWarehouse(ctx context.Context, id int64) (catalog.Warehouse, error)
}

// Service persists low-stock alerts and queues the notification email to the
// warehouse contact. It implements the notifier capability the engine
// consumes.
type Service struct {
	pool    *pgxpool.Pool
	catalog CatalogPort
	mailer  MailEnqueuer
	logger  *slog.Logger
}

// NewService builds Service. mailer may be nil; alerts are still persisted.
func NewService(pool *pgxpool.Pool, catalogPort CatalogPort, mailer MailEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, catalog: catalogPort, mailer: mailer, logger: logger}
}

// Notify records the alert and queues an email to the warehouse contact.
func (s *Service) Notify(ctx context.Context, alert ledger.LowStockAlert) error {
	item, err := s.catalog.GetItem(ctx, alert.ItemID)
	if err != nil {
		return err
	}
	warehouse, err := s.catalog.GetWarehouse(ctx, alert.WarehouseID)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO low_stock_alerts (item_id, warehouse_id, balance_qty, threshold, created_at)
VALUES ($1,$2,$3,$4,$5)`, alert.ItemID, alert.WarehouseID, alert.CurrentBalance, alert.Threshold, alert.PostedAt)
	if err != nil {
		return err
	}

	if s.mailer == nil || warehouse.ContactEmail == "" {
		return nil
	}
	payload := jobs.SendEmailPayload{
		To:      warehouse.ContactEmail,
		Subject: fmt.Sprintf("Low stock alert for %s", item.Name),
		Body: fmt.Sprintf("Stock for item %s in warehouse %s is below the minimum level. Current balance: %g, minimum: %g. Please reorder or create a merchandise request.",
			item.Name, warehouse.Name, alert.CurrentBalance, alert.Threshold),
	}
	if _, err := s.mailer.EnqueueSendEmail(ctx, payload); err != nil {
		s.logger.Warn("enqueue low stock email", slog.Any("error", err))
	}
	return nil
}
