package health

import (
	"context"
	"errors"
	"testing"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(context.Context) error {
	return s.err
}

func TestRegistry_CheckAll(t *testing.T) {
	reg := NewRegistry()
	reg.Add("database", stubChecker{})
	reg.Add("redis", stubChecker{err: errors.New("connection refused")})

	results := reg.CheckAll(context.Background())

	if len(results) != 2 {
		t.Fatalf("CheckAll() returned %d results, want 2", len(results))
	}
	if results["database"] != nil {
		t.Errorf("database check = %v, want nil", results["database"])
	}
	if results["redis"] == nil {
		t.Error("redis check = nil, want error")
	}
	if Healthy(results) {
		t.Error("Healthy() = true with a failing dependency")
	}
}

func TestRegistry_AllHealthy(t *testing.T) {
	reg := NewRegistry()
	reg.Add("database", stubChecker{})

	results := reg.CheckAll(context.Background())
	if !Healthy(results) {
		t.Errorf("Healthy() = false, results %v", results)
	}
}

func TestRegistry_Empty(t *testing.T) {
	reg := NewRegistry()
	results := reg.CheckAll(context.Background())
	if len(results) != 0 {
		t.Errorf("empty registry returned %d results", len(results))
	}
	if !Healthy(results) {
		t.Error("Healthy() on empty results should be true")
	}
}

type ctxChecker struct{}

func (ctxChecker) HealthCheck(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline set on check context")
	}
	return nil
}

func TestRegistry_AppliesTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.Add("dep", ctxChecker{})

	results := reg.CheckAll(context.Background())
	if err := results["dep"]; err != nil {
		t.Errorf("check context missing deadline: %v", err)
	}
}
