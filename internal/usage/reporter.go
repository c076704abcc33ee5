package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/sms-dispatch/internal/domain"
	"github.com/kursadbilgin/sms-dispatch/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultBufferSize = 1024
	writeTimeout      = 5 * time.Second
	drainTimeout      = 10 * time.Second
)

var _ Reporter = (*AsyncReporter)(nil)

type queuedReport struct {
	report domain.UsageReport
	at     time.Time
}

// AsyncReporter buffers usage reports and writes them to the counter and the
// ledger on a background goroutine. Report never blocks; a full buffer drops
// the report and counts it.
type AsyncReporter struct {
	counter Counter
	store   RecordStore
	queue   chan queuedReport
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewAsyncReporter(counter Counter, store RecordStore, bufferSize int, logger *zap.Logger) (*AsyncReporter, error) {
	if counter == nil && store == nil {
		return nil, fmt.Errorf("usage counter or record store is required")
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AsyncReporter{
		counter: counter,
		store:   store,
		queue:   make(chan queuedReport, bufferSize),
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (r *AsyncReporter) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

func (r *AsyncReporter) Report(report domain.UsageReport) {
	if report.Amount <= 0 {
		return
	}

	select {
	case r.queue <- queuedReport{report: report, at: r.now()}:
	default:
		r.metrics.IncUsageReportDropped()
		r.logger.Warn("usage report dropped: buffer full",
			zap.String("tenantId", report.TenantID),
			zap.String("key", report.Key.String()),
			zap.Int64("amount", report.Amount),
		)
	}
}

// Run writes queued reports until ctx is cancelled, then drains what is
// already buffered.
func (r *AsyncReporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case item := <-r.queue:
			r.write(ctx, item)
		}
	}
}

func (r *AsyncReporter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case item := <-r.queue:
			r.write(ctx, item)
		default:
			return
		}
	}
}

func (r *AsyncReporter) write(ctx context.Context, item queuedReport) {
	// Reports already accepted are written even while shutting down.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	report := item.report
	fields := []zap.Field{
		zap.String("tenantId", report.TenantID),
		zap.String("key", report.Key.String()),
		zap.Int64("amount", report.Amount),
	}

	if r.counter != nil {
		if _, err := r.counter.Add(writeCtx, report.TenantID, report.Key, report.Amount, item.at); err != nil {
			r.logger.Error("failed to update usage counter", append(fields, zap.Error(err))...)
		}
	}

	if r.store != nil {
		record := &domain.UsageRecord{
			TenantID:   report.TenantID,
			CustomerID: report.CustomerID,
			Key:        report.Key,
			Amount:     report.Amount,
			CreatedAt:  item.at,
		}
		if err := r.store.Create(writeCtx, record); err != nil {
			r.logger.Error("failed to persist usage record", append(fields, zap.Error(err))...)
		}
	}
}
