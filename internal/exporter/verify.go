package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const verifyTimeout = 5 * time.Second

// Verify fetches the exporter's metrics endpoint and parses the exposition
// output. Right after launch the exporter may not serve metrics yet, so
// callers treat a failure here as a warning, not a setup failure.
func (c *Container) Verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metricsURL, nil)
	if err != nil {
		return fmt.Errorf("build metrics request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("query metrics endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metrics endpoint returned %s", resp.Status)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return fmt.Errorf("parse exposition output: %w", err)
	}

	slog.Info("Exporter metrics endpoint responding.",
		"families", len(families), "samples", sampleCount(families))
	return nil
}

func sampleCount(families map[string]*dto.MetricFamily) int {
	n := 0
	for _, mf := range families {
		n += len(mf.GetMetric())
	}
	return n
}
