package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCheckoutMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.IncReservation("card", true)
	metrics.IncReservation("card", true)
	metrics.IncReservation("free", false)
	metrics.ObserveCheckout(250*time.Millisecond, true)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "festicart_reservations_total", map[string]string{"payment": "card", "result": "success"})
	require.NoError(t, err)
	require.Equal(t, float64(2), got)

	got, err = fetchCounterValue(mfs, "festicart_reservations_total", map[string]string{"payment": "free", "result": "failure"})
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	sum, err := fetchHistogramSum(mfs, "festicart_checkout_duration_seconds", map[string]string{"result": "success"})
	require.NoError(t, err)
	require.Greater(t, sum, float64(0))
}

func TestScanMetricsExportsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewScanMetrics(reg)
	metrics.IncOutcome("single", "accepted")
	metrics.IncOutcome("", "rejected")
	metrics.ObserveValidation("batch", 40*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "festicart_scan_outcomes_total", map[string]string{"kind": "single", "outcome": "accepted"})
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "festicart_scan_outcomes_total", map[string]string{"kind": "unknown", "outcome": "rejected"})
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	sum, err := fetchHistogramSum(mfs, "festicart_scan_validation_seconds", map[string]string{"kind": "batch"})
	require.NoError(t, err)
	require.Greater(t, sum, float64(0))
}

func TestNilRecordersAreSafe(t *testing.T) {
	var checkout *CheckoutMetrics
	var scan *ScanMetrics

	require.NotPanics(t, func() {
		checkout.IncReservation("card", true)
		checkout.ObserveCheckout(time.Second, false)
		scan.IncOutcome("single", "accepted")
		scan.ObserveValidation("single", time.Second)
		NewCheckoutMetrics(nil).IncReservation("card", true)
		NewScanMetrics(nil).IncOutcome("single", "accepted")
	})
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	metric, err := findMetric(mfs, name, labels)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	metric, err := findMetric(mfs, name, labels)
	if err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleSum(), nil
}

func findMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) (*dto.Metric, error) {
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchesLabels(metric.GetLabel(), labels) {
				return metric, nil
			}
		}
		return nil, fmt.Errorf("metric %q missing labels %v", name, labels)
	}
	return nil, fmt.Errorf("metric %q not found", name)
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if value, ok := want[pair.GetName()]; ok && value == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
