package migrate

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	transferCount   metric.Int64Counter
	downloadedBytes metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/dt-pm-tools/jira-attachment-migrator/internal/migrate")

	var err error
	transferCount, err = meter.Int64Counter(
		"migrator.transfer.count",
		metric.WithDescription("Attachments that reached a terminal stage, by stage and reason"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create transfer.count counter: %w", err))
	}

	downloadedBytes, err = meter.Int64Counter(
		"migrator.download.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes downloaded from JIRA into staging"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create download.bytes counter: %w", err))
	}
}
