package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestSlotMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSlotMetrics(reg)
	m.ObserveQuery("get_available_slots", "ok", 0.02)
	m.ObserveQuery("get_available_slots", "ok", 0.03)
	m.ObserveQuery("is_slot_available", "not_found", 0.01)
	m.ObserveEvaluated(5, 2)

	queries := gatherFamily(t, reg, "coaching_slots_queries_total")
	var okCount float64
	for _, metric := range queries.GetMetric() {
		labels := map[string]string{}
		for _, lp := range metric.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["operation"] == "get_available_slots" && labels["status"] == "ok" {
			okCount = metric.GetCounter().GetValue()
		}
	}
	if okCount != 2 {
		t.Fatalf("expected 2 ok queries, got %v", okCount)
	}

	latency := gatherFamily(t, reg, "coaching_slots_query_latency_seconds")
	if len(latency.GetMetric()) != 2 {
		t.Fatalf("expected latency series per operation, got %d", len(latency.GetMetric()))
	}

	evaluated := gatherFamily(t, reg, "coaching_slots_evaluated_total")
	var total float64
	for _, metric := range evaluated.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	if total != 7 {
		t.Fatalf("expected 7 evaluated candidates, got %v", total)
	}
}

func TestSlotMetricsSkipsZeroCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSlotMetrics(reg)
	m.ObserveEvaluated(0, 0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "coaching_slots_evaluated_total" && len(f.GetMetric()) > 0 {
			t.Fatalf("expected no evaluated series, got %d", len(f.GetMetric()))
		}
	}
}

func TestSlotMetricsNilSafe(t *testing.T) {
	var m *SlotMetrics
	m.ObserveQuery("op", "ok", 0.1)
	m.ObserveEvaluated(1, 1)
}
