package gateway

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewHTTPClient は上流呼び出し用のHTTPクライアントを生成する。
// トランスポートはOpenTelemetryで計装し、スパン名は上流のパスにする。
// tpとpropがnilの場合はグローバルの設定を使う。
func NewHTTPClient(timeout time.Duration, tp trace.TracerProvider, prop propagation.TextMapPropagator) *http.Client {
	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "upstream " + r.Method + " " + r.URL.Path
		}),
	}
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	if prop != nil {
		opts = append(opts, otelhttp.WithPropagators(prop))
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
	}
}
