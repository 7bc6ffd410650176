// Package monitor exposes the stage's Prometheus metrics together with a
// small admin HTTP surface (/metrics, /healthz, /cameras).
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/starwit/sae-geo-mapper/logger"
)

// Pipeline metrics. Initialized at declaration so producers can record
// before the monitor server is running (and in tests without it).
var (
	GetDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geo_mapper_get_duration",
		Help:    "The time from deserializing the input message until the transformed result is serialized",
		Buckets: []float64{0.0025, 0.005, 0.0075, 0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.2, 0.25},
	})
	TransformDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "geo_mapper_transform_duration",
		Help: "How long the coordinate transformation takes",
	})
	ObjectCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geo_mapper_object_counter",
		Help: "How many detections have been transformed",
	})
	SerializeDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "geo_mapper_proto_serialization_duration",
		Help: "The time it takes to create a serialized output message",
	})
	DeserializeDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "geo_mapper_proto_deserialization_duration",
		Help: "The time it takes to deserialize an input message",
	})
	FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_mapper_frames_dropped_total",
		Help: "Frames discarded before publishing, by reason",
	}, []string{"reason"})
)

// Process metrics, sampled on a ticker.
var (
	pid      process.Process
	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
)

// StreamInfo is what /cameras reports per configured stream.
type StreamInfo struct {
	StreamID string `json:"streamId"`
	Mode     string `json:"mode"`
}

var srv *http.Server

func serve(port int, streams []StreamInfo) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(GetDuration, TransformDuration, ObjectCounter,
		SerializeDuration, DeserializeDuration, FramesDropped, memUsage, cpuUsage)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/cameras", func(c *gin.Context) {
		c.JSON(http.StatusOK, streams)
	})

	srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.S().Errorf("monitor server error: %v", err)
		}
	}()
}

func checkProcessInfo() {
	memInfo, err := pid.MemoryInfo()
	if err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := pid.CPUPercent()
	if err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon runs the admin server and samples process stats until the context
// is cancelled.
func StartMon(port int, streams []StreamInfo, ctx context.Context) {
	pid = process.Process{Pid: int32(os.Getpid())}
	serve(port, streams)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			checkProcessInfo()
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.S().Errorf("monitor server shutdown error: %v", err)
	}
}
