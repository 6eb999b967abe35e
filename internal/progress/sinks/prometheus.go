package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/gallery-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	signals       *prometheus.CounterVec
	steps         *prometheus.CounterVec
	images        *prometheus.CounterVec
	imageBytes    *prometheus.CounterVec
	cycleErrors   *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_signals_total",
			Help: "Advance requests delivered to the crawler, by source.",
		}, []string{"source"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_steps_total",
			Help: "Crawl steps completed, by finished stage.",
		}, []string{"stage"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_images_total",
			Help: "Images downloaded, by site.",
		}, []string{"site"}),
		imageBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_image_bytes_total",
			Help: "Image bytes downloaded, by site.",
		}, []string{"site"}),
		cycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_cycle_errors_total",
			Help: "Crawl cycles that ended in failure, by error kind.",
		}, []string{"kind"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gallery_cycle_duration_seconds",
			Help:    "Time from advance request to terminal outcome.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.signals,
		s.steps,
		s.images,
		s.imageBytes,
		s.cycleErrors,
		s.cycleDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSignal:
		s.signals.WithLabelValues(labelOr(evt.Note)).Inc()
	case progress.StageStepProgress:
		s.steps.WithLabelValues(labelOr(evt.StepStage)).Inc()
	case progress.StageImageDone:
		site := labelOr(evt.Site)
		s.images.WithLabelValues(site).Inc()
		if evt.Bytes > 0 {
			s.imageBytes.WithLabelValues(site).Add(float64(evt.Bytes))
		}
		s.observeCycle(evt, "success")
	case progress.StageCycleError:
		s.cycleErrors.WithLabelValues(labelOr(evt.ErrKind)).Inc()
		s.observeCycle(evt, "error")
	}
}

func (s *PrometheusSink) observeCycle(evt progress.Event, result string) {
	if evt.Dur > 0 {
		s.cycleDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func labelOr(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
