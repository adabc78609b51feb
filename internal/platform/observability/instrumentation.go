package observability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	countersMu sync.Mutex
	counters   = map[string]float64{}
)

func resetCounters() {
	countersMu.Lock()
	counters = map[string]float64{}
	countersMu.Unlock()
}

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan records the lifecycle of one operation. The returned func must be called once.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	start := time.Now()
	if logger != nil && cfg.Enabled {
		logger.LogAttrs(ctx, slog.LevelDebug, "obs span start",
			slog.String("component", component),
			slog.String("operation", operation),
		)
	}

	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		RecordMetric(ctx, component+"."+operation, 1, map[string]string{"outcome": outcome})

		if logger == nil || !cfg.Enabled {
			return
		}
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.Any("error", err))
		}
		logger.LogAttrs(ctx, level, "obs span end", attrs...)
	}
}

// RecordMetric adds value to the counter identified by name and labels.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	key := metricKey(name, labels)
	countersMu.Lock()
	counters[key] += value
	countersMu.Unlock()

	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return
	}
	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}

// Snapshot 返回当前计数器的拷贝，供健康检查接口输出
func Snapshot() map[string]float64 {
	countersMu.Lock()
	defer countersMu.Unlock()
	out := make(map[string]float64, len(counters))
	for k, v := range counters {
		out[k] = v
	}
	return out
}

// metricKey renders name{k=v,...} with labels in sorted order.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
