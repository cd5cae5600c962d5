package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveDuration("quote-expiry", 250*time.Millisecond)
	m.IncSuccess("quote-expiry")
	m.IncFailure("")
	m.IncSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := counterValue(t, mfs, "chopmart_cron_job_success_total", map[string]string{"job": "quote-expiry"}); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := counterValue(t, mfs, "chopmart_cron_job_failure_total", map[string]string{"job": "unknown"}); got != 1 {
		t.Fatalf("empty job name should be labelled unknown, got %f", got)
	}
	if got := counterValue(t, mfs, "chopmart_cron_cycle_skipped_total", nil); got != 1 {
		t.Fatalf("expected skipped=1, got %f", got)
	}
	mf := findMetricFamily(mfs, "chopmart_cron_job_duration_seconds")
	if mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleSum() <= 0 {
		t.Fatalf("expected duration sample")
	}
}

func TestNilRecordersAreNoops(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("x")
	cron.IncSkipped()
	NewCronJobMetrics(nil).ObserveDuration("x", time.Second)

	var jobs *DeliveryJobMetrics
	jobs.IncTransition("a", "b")
	NewDeliveryJobMetrics(nil).IncNotificationFailure("x")
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q missing labels %v", name, labels)
	return 0
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	found := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}

func ExampleDeliveryJobMetrics() {
	reg := prometheus.NewRegistry()
	m := NewDeliveryJobMetrics(reg)
	m.IncTransition("quoted", "accepted")
	mfs, _ := reg.Gather()
	fmt.Println(mfs[0].GetName())
	// Output: chopmart_delivery_job_transitions_total
}
