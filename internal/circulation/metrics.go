// internal/circulation/metrics.go
package circulation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type instruments struct {
	loansIssued   metric.Int64Counter
	loansReturned metric.Int64Counter
	loansRenewed  metric.Int64Counter
	finesAssessed metric.Float64Counter
}

func newInstruments(meter metric.Meter) instruments {
	fallback := noop.NewMeterProvider().Meter("lendingdesk/circulation")
	inst := instruments{}

	var err error
	if inst.loansIssued, err = meter.Int64Counter("lendingdesk.loans.issued",
		metric.WithDescription("Loans issued")); err != nil {
		inst.loansIssued, _ = fallback.Int64Counter("lendingdesk.loans.issued")
	}
	if inst.loansReturned, err = meter.Int64Counter("lendingdesk.loans.returned",
		metric.WithDescription("Loans returned")); err != nil {
		inst.loansReturned, _ = fallback.Int64Counter("lendingdesk.loans.returned")
	}
	if inst.loansRenewed, err = meter.Int64Counter("lendingdesk.loans.renewed",
		metric.WithDescription("Loans renewed")); err != nil {
		inst.loansRenewed, _ = fallback.Int64Counter("lendingdesk.loans.renewed")
	}
	if inst.finesAssessed, err = meter.Float64Counter("lendingdesk.fines.assessed",
		metric.WithDescription("Fines assessed on return")); err != nil {
		inst.finesAssessed, _ = fallback.Float64Counter("lendingdesk.fines.assessed")
	}

	return inst
}

func (i instruments) returned(ctx context.Context, fine float64, late bool) {
	i.loansReturned.Add(ctx, 1, metric.WithAttributes(attribute.Bool("late", late)))
	if fine > 0 {
		i.finesAssessed.Add(ctx, fine)
	}
}
