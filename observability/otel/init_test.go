package otel

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestInitWithoutEndpointInstallsNoExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "rfqd", Traces: true, Metrics: true})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing service name to fail")
	}
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer x ,broken, =skip,team=rfq")
	if len(headers) != 2 || headers["authorization"] != "Bearer x" || headers["team"] != "rfq" {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestSamplerRatioBounds(t *testing.T) {
	for _, ratio := range []float64{0, -1, 1, 2} {
		if got := sampler(ratio).Description(); !strings.Contains(got, "root:AlwaysOnSampler") {
			t.Fatalf("ratio %v: unexpected sampler %s", ratio, got)
		}
	}
	if got := sampler(0.25).Description(); !strings.Contains(got, "TraceIDRatioBased{0.25}") {
		t.Fatalf("unexpected ratio sampler %s", got)
	}
}

func TestShutdownStackRunsInReverse(t *testing.T) {
	var order []int
	var stack shutdownStack
	for i := 0; i < 3; i++ {
		i := i
		stack.push(func(context.Context) error {
			order = append(order, i)
			if i == 1 {
				return errors.New("flush failed")
			}
			return nil
		})
	}
	err := stack.shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "flush failed") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(order) != 3 || order[0] != 2 || order[2] != 0 {
		t.Fatalf("unexpected order %v", order)
	}
}
