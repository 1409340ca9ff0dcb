// Package telemetry はOpenTelemetryによる分散トレーシングの構成を提供する。
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName はリソース属性service.nameに設定するサービス名。
const ServiceName = "storefront"

// Config はトレーシングの設定。
type Config struct {
	// OTLPEndpoint はOTLP/HTTPの送信先URL。空の場合はスパンを記録するがエクスポートしない。
	OTLPEndpoint string
	// SampleRatio はルートスパンのサンプリング率（0〜1）。
	// 上流から伝搬されたトレースは親のサンプリング判定に従う。
	SampleRatio float64
}

// NewTracerProvider はSDKのTracerProviderを生成する。
// 追加のSpanProcessorはテストでスパンを検査する場合に渡す。
func NewTracerProvider(ctx context.Context, cfg Config, processors ...sdktrace.SpanProcessor) (*sdktrace.TracerProvider, error) {
	ratio := cfg.SampleRatio
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// Propagator はW3C Trace ContextとBaggageを読み書きするプロパゲーターを返す。
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}
