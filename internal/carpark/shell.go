package carpark

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacobszpz/CarPark/internal/telemetry"
)

// Shell reads car park commands line by line and applies them to an
// instrumented car park. Each command runs under its own span. The car park
// does not exist until a create command arrives.
type Shell struct {
	carPark   *Instrumented
	scanner   *bufio.Scanner
	out       io.Writer
	telemetry *telemetry.Provider
}

func NewShell(in io.Reader, out io.Writer, tel *telemetry.Provider) *Shell {
	return &Shell{
		scanner:   bufio.NewScanner(in),
		out:       out,
		telemetry: tel,
	}
}

// Run processes commands until exit or end of input.
func (s *Shell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for {
		if !s.scanner.Scan() {
			break
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))

		done := s.processCommand(cmdCtx, input)
		cmdSpan.End()

		if done {
			break
		}
	}

	span.AddEvent("shell_ended")
}

// processCommand dispatches one input line and reports whether the shell
// should stop.
func (s *Shell) processCommand(ctx context.Context, input string) bool {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.parse_command")
	defer span.End()

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	command := parts[0]
	span.SetAttributes(attribute.String("command.name", command))

	switch command {
	case "create":
		s.handleCreate(ctx, parts)
	case "enter":
		s.handleEnter(ctx, parts)
	case "reserved":
		s.handleEnterReserved(ctx, parts)
	case "leave":
		s.handleLeave(ctx, parts)
	case "subscribe":
		s.handleSubscribe(ctx, parts)
	case "open":
		s.handleOpen(ctx)
	case "close":
		s.handleClose(ctx)
	case "availability":
		s.handleAvailability(ctx)
	case "status":
		s.handleStatus(ctx)
	case "exit":
		return true
	default:
		span.AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		fmt.Fprintf(s.out, "Unknown command: %s\n", command)
	}

	return false
}

func (s *Shell) handleCreate(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.create_command")
	defer span.End()

	if len(parts) != 4 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: create <capacity> <reserved> <min-free>")
		return
	}

	capacity, err1 := strconv.Atoi(parts[1])
	reserved, err2 := strconv.Atoi(parts[2])
	minFree, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		span.RecordError(fmt.Errorf("invalid sizes: %s %s %s", parts[1], parts[2], parts[3]))
		span.AddEvent("invalid_sizes")
		fmt.Fprintln(s.out, "Invalid sizes")
		return
	}

	span.SetAttributes(
		attribute.Int("car_park.capacity", capacity),
		attribute.Int("car_park.reserved_capacity", reserved),
		attribute.Int("car_park.min_spaces_left", minFree),
	)

	carPark, err := NewInstrumented(capacity, reserved, minFree, s.telemetry)
	if err != nil {
		span.RecordError(err)
		fmt.Fprintf(s.out, "Error creating car park: %s\n", err.Error())
		return
	}

	s.carPark = carPark
	span.AddEvent("car_park_created")
	fmt.Fprintf(s.out, "Created a car park with %d spaces (%d reserved, %d always free)\n", capacity, reserved, minFree)
}

func (s *Shell) handleEnter(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.enter_command")
	defer span.End()

	if s.carPark == nil {
		span.AddEvent("car_park_not_created")
		fmt.Fprintln(s.out, "Car park not created")
		return
	}

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: enter <registration>")
		return
	}

	car := parts[1]
	span.SetAttributes(attribute.String("car.registration", car))

	if !s.carPark.Enter(ctx, car) {
		span.AddEvent("entry_refused")
		fmt.Fprintln(s.out, "Sorry, car park is full")
		return
	}

	span.AddEvent("entry_successful")
	fmt.Fprintf(s.out, "%s entered the car park\n", car)
}

func (s *Shell) handleEnterReserved(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.reserved_command")
	defer span.End()

	if s.carPark == nil {
		span.AddEvent("car_park_not_created")
		fmt.Fprintln(s.out, "Car park not created")
		return
	}

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: reserved <registration>")
		return
	}

	car := parts[1]
	span.SetAttributes(attribute.String("car.registration", car))

	admitted, err := s.carPark.EnterReserved(ctx, car)
	if err != nil {
		span.AddEvent("entry_rejected")
		fmt.Fprintf(s.out, "%s is not subscribed\n", car)
		return
	}
	if !admitted {
		span.AddEvent("entry_refused")
		fmt.Fprintln(s.out, "Sorry, car park is full")
		return
	}

	span.AddEvent("entry_successful")
	fmt.Fprintf(s.out, "%s entered the reserved area\n", car)
}

func (s *Shell) handleLeave(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.leave_command")
	defer span.End()

	if s.carPark == nil {
		span.AddEvent("car_park_not_created")
		fmt.Fprintln(s.out, "Car park not created")
		return
	}

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: leave <registration>")
		return
	}

	car := parts[1]
	span.SetAttributes(attribute.String("car.registration", car))

	s.carPark.Leave(ctx, car)

	span.AddEvent("leave_successful")
	fmt.Fprintf(s.out, "%s left the car park\n", car)
}

func (s *Shell) handleSubscribe(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.subscribe_command")
	defer span.End()

	if s.carPark == nil {
		span.AddEvent("car_park_not_created")
		fmt.Fprintln(s.out, "Car park not created")
		return
	}

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: subscribe <registration>")
		return
	}

	car := parts[1]
	span.SetAttributes(attribute.String("car.registration", car))

	if !s.carPark.Subscribe(ctx, car) {
		span.AddEvent("subscription_refused")
		fmt.Fprintln(s.out, "Sorry, no subscriptions left")
		return
	}

	span.AddEvent("subscription_successful")
	fmt.Fprintf(s.out, "%s is subscribed\n", car)
}

func (s *Shell) handleOpen(ctx context.Context) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.open_command")
	defer span.End()

	if s.carPark == nil {
		span.AddEvent("car_park_not_created")
		fmt.Fprintln(s.out, "Car park not created")
		return
	}

	s.carPark.OpenReservedArea(ctx)

	span.AddEvent("reserved_area_opened")
	fmt.Fprintln(s.out, "Reserved area is open to everyone")
}

func (s *Shell) handleClose(ctx context.Context) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.close_command")
	defer span.End()

	if s.carPark == nil {
		span.AddEvent("car_park_not_created")
		fmt.Fprintln(s.out, "Car park not created")
		return
	}

	s.carPark.Close(ctx)

	span.AddEvent("car_park_closed")
	fmt.Fprintln(s.out, "Car park closed, all cars evicted")
}

func (s *Shell) handleAvailability(ctx context.Context) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.availability_command")
	defer span.End()

	if s.carPark == nil {
		span.AddEvent("car_park_not_created")
		fmt.Fprintln(s.out, "Car park not created")
		return
	}

	available := s.carPark.Available(ctx)

	span.SetAttributes(attribute.Int("available_spaces", available))
	fmt.Fprintf(s.out, "Available spaces: %d\n", available)
}

func (s *Shell) handleStatus(ctx context.Context) {
	tracer := s.telemetry.Tracer
	_, span := tracer.Start(ctx, "shell.status_command")
	defer span.End()

	if s.carPark == nil {
		span.AddEvent("car_park_not_created")
		fmt.Fprintln(s.out, "Car park not created")
		return
	}

	snap := s.carPark.Snapshot(ctx)
	span.AddEvent("status_retrieved")

	fmt.Fprintln(s.out, snap.String())
}
