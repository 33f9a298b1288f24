package carpark

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacobszpz/CarPark/internal/telemetry"
)

// Instrumented wraps a CarPark with tracing and metrics. Every operation
// gets a context-taking variant that opens a span, runs the wrapped
// operation, and keeps the occupancy gauges in step with the sets.
type Instrumented struct {
	*CarPark
	telemetry *telemetry.Provider

	// Metrics
	entryOperations        metric.Int64Counter
	exitOperations         metric.Int64Counter
	subscriptionOperations metric.Int64Counter
	modeChangeOperations   metric.Int64Counter
	occupancyGauge         metric.Int64UpDownCounter
	reservedOccupancyGauge metric.Int64UpDownCounter
	subscribersGauge       metric.Int64UpDownCounter
	totalSpacesGauge       metric.Int64UpDownCounter
	operationDuration      metric.Float64Histogram
}

func NewInstrumented(capacity, reservedCapacity, minSpacesLeft int, tel *telemetry.Provider) (*Instrumented, error) {
	base, err := New(capacity, reservedCapacity, minSpacesLeft)
	if err != nil {
		return nil, err
	}

	meter := tel.Meter

	entryOperations, err := meter.Int64Counter("entry_operations_total",
		metric.WithDescription("Total number of entry attempts through either gate"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("exit_operations_total",
		metric.WithDescription("Total number of exit operations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	subscriptionOperations, err := meter.Int64Counter("subscription_operations_total",
		metric.WithDescription("Total number of subscription requests"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	modeChangeOperations, err := meter.Int64Counter("mode_change_operations_total",
		metric.WithDescription("Total number of mode transitions (open reserved area, close)"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("car_park_occupancy",
		metric.WithDescription("Current number of cars anywhere in the facility"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	reservedOccupancyGauge, err := meter.Int64UpDownCounter("car_park_reserved_occupancy",
		metric.WithDescription("Current number of cars in the reserved area"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	subscribersGauge, err := meter.Int64UpDownCounter("car_park_subscribers",
		metric.WithDescription("Current number of cars holding a subscription"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	totalSpacesGauge, err := meter.Int64UpDownCounter("car_park_total_spaces",
		metric.WithDescription("Total number of physical spaces"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of car park operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	icp := &Instrumented{
		CarPark:                base,
		telemetry:              tel,
		entryOperations:        entryOperations,
		exitOperations:         exitOperations,
		subscriptionOperations: subscriptionOperations,
		modeChangeOperations:   modeChangeOperations,
		occupancyGauge:         occupancyGauge,
		reservedOccupancyGauge: reservedOccupancyGauge,
		subscribersGauge:       subscribersGauge,
		totalSpacesGauge:       totalSpacesGauge,
		operationDuration:      operationDuration,
	}

	// Set initial capacity metric
	totalSpacesGauge.Add(context.Background(), int64(capacity))

	return icp, nil
}

func (icp *Instrumented) Enter(ctx context.Context, car string) bool {
	tracer := icp.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "car_park.enter",
		trace.WithAttributes(
			attribute.String("car.registration", car),
		))
	defer span.End()

	start := time.Now()

	wasParked := icp.CarPark.IsParked(car)

	span.AddEvent("checking_free_space")

	admitted := icp.CarPark.Enter(car)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "enter"),
		attribute.String("gate", "general"),
	}

	if admitted {
		labels = append(labels, attribute.String("status", "admitted"))
		span.AddEvent("car_admitted")
		if !wasParked {
			icp.occupancyGauge.Add(ctx, 1)
		}
	} else {
		labels = append(labels, attribute.String("status", "refused"))
		span.AddEvent("car_refused", trace.WithAttributes(
			attribute.Int("available_spaces", icp.CarPark.Available()),
		))
	}

	icp.entryOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	icp.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return admitted
}

func (icp *Instrumented) EnterReserved(ctx context.Context, car string) (bool, error) {
	tracer := icp.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "car_park.enter_reserved",
		trace.WithAttributes(
			attribute.String("car.registration", car),
			attribute.Bool("reserved_open", icp.CarPark.ReservedOpen()),
		))
	defer span.End()

	start := time.Now()

	wasParked := icp.CarPark.IsParked(car)
	wasReserved := icp.CarPark.IsReserved(car)

	span.AddEvent("checking_subscription")

	admitted, err := icp.CarPark.EnterReserved(car)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "enter_reserved"),
		attribute.String("gate", "reserved"),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", "rejected"))
	} else if admitted {
		labels = append(labels, attribute.String("status", "admitted"))
		span.AddEvent("car_admitted")
		if !wasParked {
			icp.occupancyGauge.Add(ctx, 1)
		}
		if !wasReserved && icp.CarPark.IsReserved(car) {
			icp.reservedOccupancyGauge.Add(ctx, 1)
		}
	} else {
		labels = append(labels, attribute.String("status", "refused"))
		span.AddEvent("car_refused")
	}

	icp.entryOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	icp.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return admitted, err
}

func (icp *Instrumented) Leave(ctx context.Context, car string) {
	tracer := icp.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "car_park.leave",
		trace.WithAttributes(
			attribute.String("car.registration", car),
		))
	defer span.End()

	start := time.Now()

	wasParked := icp.CarPark.IsParked(car)
	wasReserved := icp.CarPark.IsReserved(car)

	span.AddEvent("releasing_space")

	icp.CarPark.Leave(car)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "leave"),
		attribute.Bool("was_parked", wasParked),
	}

	if wasParked {
		icp.occupancyGauge.Add(ctx, -1)
	}
	if wasReserved {
		icp.reservedOccupancyGauge.Add(ctx, -1)
	}

	icp.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	icp.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))
}

func (icp *Instrumented) Subscribe(ctx context.Context, car string) bool {
	tracer := icp.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "car_park.subscribe",
		trace.WithAttributes(
			attribute.String("car.registration", car),
		))
	defer span.End()

	start := time.Now()

	wasSubscribed := icp.CarPark.IsSubscribed(car)

	subscribed := icp.CarPark.Subscribe(car)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "subscribe"),
	}

	if subscribed {
		labels = append(labels, attribute.String("status", "accepted"))
		if !wasSubscribed {
			icp.subscribersGauge.Add(ctx, 1)
			span.AddEvent("subscription_registered", trace.WithAttributes(
				attribute.Int("subscribers", icp.CarPark.Subscribers()),
			))
		}
	} else {
		labels = append(labels, attribute.String("status", "refused"))
		span.AddEvent("subscription_register_full")
	}

	icp.subscriptionOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	icp.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return subscribed
}

func (icp *Instrumented) OpenReservedArea(ctx context.Context) {
	tracer := icp.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "car_park.open_reserved_area")
	defer span.End()

	start := time.Now()

	reclassified := icp.CarPark.ReservedOccupied()

	icp.CarPark.OpenReservedArea()

	duration := time.Since(start).Seconds()

	span.AddEvent("reserved_area_opened", trace.WithAttributes(
		attribute.Int("reclassified_cars", reclassified),
	))

	if reclassified > 0 {
		icp.reservedOccupancyGauge.Add(ctx, int64(-reclassified))
	}

	labels := []attribute.KeyValue{
		attribute.String("operation", "open_reserved_area"),
		attribute.String("mode", "weekend"),
	}

	icp.modeChangeOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	icp.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))
}

func (icp *Instrumented) Close(ctx context.Context) {
	tracer := icp.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "car_park.close")
	defer span.End()

	start := time.Now()

	evicted := icp.CarPark.Occupied()
	reservedBefore := icp.CarPark.ReservedOccupied()

	icp.CarPark.Close()

	duration := time.Since(start).Seconds()

	span.AddEvent("facility_emptied", trace.WithAttributes(
		attribute.Int("evicted_cars", evicted),
	))

	if evicted > 0 {
		icp.occupancyGauge.Add(ctx, int64(-evicted))
	}
	if reservedBefore > 0 {
		icp.reservedOccupancyGauge.Add(ctx, int64(-reservedBefore))
	}

	labels := []attribute.KeyValue{
		attribute.String("operation", "close"),
		attribute.String("mode", "weekday"),
	}

	icp.modeChangeOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	icp.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))
}

func (icp *Instrumented) Available(ctx context.Context) int {
	tracer := icp.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "car_park.availability")
	defer span.End()

	start := time.Now()

	available := icp.CarPark.Available()

	duration := time.Since(start).Seconds()

	span.SetAttributes(
		attribute.Int("available_spaces", available),
		attribute.Int("occupied_spaces", icp.CarPark.Occupied()),
	)

	labels := []attribute.KeyValue{
		attribute.String("operation", "availability"),
		attribute.String("status", "success"),
	}

	icp.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return available
}

func (icp *Instrumented) Snapshot(ctx context.Context) Snapshot {
	tracer := icp.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "car_park.snapshot")
	defer span.End()

	start := time.Now()

	snap := icp.CarPark.Snapshot()

	duration := time.Since(start).Seconds()

	span.SetAttributes(
		attribute.Int("occupied_spaces", len(snap.Parked)),
		attribute.Int("reserved_occupied", len(snap.Reserved)),
		attribute.Int("subscribers", len(snap.Subscribed)),
	)

	labels := []attribute.KeyValue{
		attribute.String("operation", "snapshot"),
		attribute.String("status", "success"),
	}

	icp.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return snap
}
