package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics counts the outcomes of catalog and order pipeline steps.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	productsSynced   metric.Int64Counter
	syncPageErrors   metric.Int64Counter
	stockUpdated     metric.Int64Counter
	stockBatchErrors metric.Int64Counter
	payments         metric.Int64Counter
	webhooks         metric.Int64Counter
	fulfillment      metric.Int64Counter
}

// NewPipelineMetrics creates the counters on the given meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{count}"))
		errs = append(errs, err)
		return c
	}
	m.productsSynced = counter("catalog.products.synced", "Products upserted by catalog sync, by outcome")
	m.syncPageErrors = counter("catalog.sync.page_errors", "Supplier list pages that failed during sync")
	m.stockUpdated = counter("catalog.stock.updated", "Variant stock levels changed by reconciliation")
	m.stockBatchErrors = counter("catalog.stock.batch_errors", "Supplier stock batches that failed")
	m.payments = counter("order.payments", "Payment attempts, by method and outcome")
	m.webhooks = counter("order.payment_webhooks", "Payment webhooks, by outcome")
	m.fulfillment = counter("order.fulfillment", "Supplier order submissions, by outcome")
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// ProductsSynced records upsert outcomes of one sync run
func (m *PipelineMetrics) ProductsSynced(ctx context.Context, succeeded, failed int) {
	if m == nil {
		return
	}
	m.productsSynced.Add(ctx, int64(succeeded), metric.WithAttributes(attribute.String("outcome", "success")))
	m.productsSynced.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("outcome", "failed")))
}

// SyncPageFailed records a failed supplier list page
func (m *PipelineMetrics) SyncPageFailed(ctx context.Context, keyword string) {
	if m == nil {
		return
	}
	m.syncPageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("keyword", keyword)))
}

// StockReconciled records one reconciliation run
func (m *PipelineMetrics) StockReconciled(ctx context.Context, updated, failedBatches int) {
	if m == nil {
		return
	}
	m.stockUpdated.Add(ctx, int64(updated))
	m.stockBatchErrors.Add(ctx, int64(failedBatches))
}

// PaymentAttempted records a payment outcome (paid, pending, failed, rejected)
func (m *PipelineMetrics) PaymentAttempted(ctx context.Context, method, outcome string) {
	if m == nil {
		return
	}
	m.payments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

// WebhookHandled records a webhook outcome (applied, duplicate, ignored, rejected)
func (m *PipelineMetrics) WebhookHandled(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// FulfillmentDispatched records a supplier submission outcome
func (m *PipelineMetrics) FulfillmentDispatched(ctx context.Context, submitted bool) {
	if m == nil {
		return
	}
	outcome := "submitted"
	if !submitted {
		outcome = "failed"
	}
	m.fulfillment.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
