package carpark

import (
	"context"
	"strings"
	"testing"

	"github.com/jacobszpz/CarPark/internal/telemetry"
)

func TestShellSession(t *testing.T) {
	ctx := context.Background()

	tel, err := telemetry.Init(ctx, "carpark-shell-test", "http://localhost:4318", "test")
	if err != nil {
		t.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() { _ = tel.Shutdown(ctx) }()

	session := strings.Join([]string{
		"create 15 5 5",
		"enter KA01HH1234",
		"enter KA01HH1234",
		"subscribe KA01HH9999",
		"reserved KA01HH9999",
		"reserved KA01BB0001",
		"availability",
		"open",
		"availability",
		"close",
		"status",
		"exit",
	}, "\n")

	var out strings.Builder
	shell := NewShell(strings.NewReader(session), &out, tel)
	shell.Run(ctx)

	got := out.String()
	want := []string{
		"Created a car park with 15 spaces (5 reserved, 5 always free)",
		"KA01HH1234 entered the car park",
		"KA01HH9999 is subscribed",
		"KA01HH9999 entered the reserved area",
		"KA01BB0001 is not subscribed",
		"Available spaces: 9",
		"Reserved area is open to everyone",
		"Available spaces: 13",
		"Car park closed, all cars evicted",
		"Subscribed (1): KA01HH9999",
	}
	for _, line := range want {
		if !strings.Contains(got, line) {
			t.Errorf("Expected output to contain %q, got:\n%s", line, got)
		}
	}
}

func TestShellRequiresCreate(t *testing.T) {
	ctx := context.Background()

	tel, err := telemetry.Init(ctx, "carpark-shell-test", "http://localhost:4318", "test")
	if err != nil {
		t.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() { _ = tel.Shutdown(ctx) }()

	var out strings.Builder
	shell := NewShell(strings.NewReader("enter KA01HH1234\nwibble\n"), &out, tel)
	shell.Run(ctx)

	if !strings.Contains(out.String(), "Car park not created") {
		t.Errorf("Expected a not-created message, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Unknown command: wibble") {
		t.Errorf("Expected an unknown-command message, got:\n%s", out.String())
	}
}

func TestShellRejectsBadCreate(t *testing.T) {
	ctx := context.Background()

	tel, err := telemetry.Init(ctx, "carpark-shell-test", "http://localhost:4318", "test")
	if err != nil {
		t.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() { _ = tel.Shutdown(ctx) }()

	var out strings.Builder
	shell := NewShell(strings.NewReader("create 10 6 5\ncreate ten 1 1\n"), &out, tel)
	shell.Run(ctx)

	if !strings.Contains(out.String(), "Error creating car park") {
		t.Errorf("Expected a layout rejection, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Invalid sizes") {
		t.Errorf("Expected an invalid-sizes message, got:\n%s", out.String())
	}
}
