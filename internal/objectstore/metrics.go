package objectstore

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	uploadCount  metric.Int64Counter
	uploadBytes  metric.Int64Counter
	uploadErrors metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/dt-pm-tools/jira-attachment-migrator/internal/objectstore")

	var err error
	uploadCount, err = meter.Int64Counter(
		"migrator.objectstore.upload.count",
		metric.WithDescription("Number of attachments uploaded"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.count counter: %w", err))
	}

	uploadBytes, err = meter.Int64Counter(
		"migrator.objectstore.upload.bytes",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes uploaded"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.bytes counter: %w", err))
	}

	uploadErrors, err = meter.Int64Counter(
		"migrator.objectstore.upload.errors",
		metric.WithDescription("Number of failed uploads"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.errors counter: %w", err))
	}
}
