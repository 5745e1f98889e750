package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveExtract(t *testing.T) {
	images := counterValue(t, ImagesProcessed)
	faces := counterValue(t, FacesFound)

	ObserveExtract(time.Now(), true)
	ObserveExtract(time.Now(), false)

	if got := counterValue(t, ImagesProcessed) - images; got != 2 {
		t.Errorf("expected 2 images processed, got %v", got)
	}
	if got := counterValue(t, FacesFound) - faces; got != 1 {
		t.Errorf("expected 1 face found, got %v", got)
	}
}

func TestObserveRequest(t *testing.T) {
	ObserveRequest("GET", "/api/v1/health", 200, 5*time.Millisecond)

	h, err := HTTPRequestDuration.GetMetricWithLabelValues("GET", "/api/v1/health", "200")
	if err != nil {
		t.Fatalf("failed to get histogram: %v", err)
	}
	var m dto.Metric
	if err := h.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to read histogram: %v", err)
	}
	if m.GetHistogram().GetSampleCount() == 0 {
		t.Error("expected at least one observation")
	}
}
