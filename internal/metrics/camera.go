// Package metrics provides Prometheus metrics for camera sessions and frame delivery.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cameraSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camerahost",
		Subsystem: "camera",
		Name:      "sessions",
		Help:      "Number of live camera sessions",
	})

	cameraPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camerahost",
		Subsystem: "camera",
		Name:      "pending_operations",
		Help:      "Operations submitted but not yet completed",
	})

	cameraOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camerahost",
		Subsystem: "camera",
		Name:      "operations_total",
		Help:      "Completed camera operations by kind and result",
	}, []string{"operation", "result"})

	cameraOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "camerahost",
		Subsystem: "camera",
		Name:      "operation_duration_seconds",
		Help:      "Time from submission to completion of camera operations",
		Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"operation"})

	framesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camerahost",
		Subsystem: "stream",
		Name:      "frames_delivered_total",
		Help:      "Frames pushed into the frame sink",
	}, []string{"camera_id"})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camerahost",
		Subsystem: "stream",
		Name:      "frames_dropped_total",
		Help:      "Frames the frame sink refused",
	}, []string{"camera_id"})

	sinkClaimed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camerahost",
		Subsystem: "stream",
		Name:      "sink_claimed",
		Help:      "1 while a session holds the frame sink",
	})

	// Local cache for the camera list endpoint.
	streamCache   = make(map[string]*StreamStats)
	streamCacheMu sync.RWMutex
)

// StreamStats holds frame counters for one session's image stream.
type StreamStats struct {
	Delivered uint64
	Dropped   uint64
	LastFrame time.Time
}

// SetSessions sets the live session count.
func SetSessions(n int) {
	cameraSessions.Set(float64(n))
}

// SetPending sets the number of in-flight operations.
func SetPending(n int) {
	cameraPending.Set(float64(n))
}

// ObserveOperation records one completed operation. result is "success"
// or an error code.
func ObserveOperation(operation, result string, elapsed time.Duration) {
	cameraOperations.WithLabelValues(operation, result).Inc()
	cameraOperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetSinkClaimed records whether a session currently holds the frame sink.
func SetSinkClaimed(claimed bool) {
	if claimed {
		sinkClaimed.Set(1)
		return
	}
	sinkClaimed.Set(0)
}

// FrameDelivered counts a frame accepted by the sink.
func FrameDelivered(cameraID int64) {
	id := strconv.FormatInt(cameraID, 10)
	framesDelivered.WithLabelValues(id).Inc()
	updateStream(id, func(s *StreamStats) {
		s.Delivered++
		s.LastFrame = time.Now()
	})
}

// FrameDropped counts a frame the sink refused.
func FrameDropped(cameraID int64) {
	id := strconv.FormatInt(cameraID, 10)
	framesDropped.WithLabelValues(id).Inc()
	updateStream(id, func(s *StreamStats) { s.Dropped++ })
}

// DeleteStreamMetrics removes per-session frame metrics.
func DeleteStreamMetrics(cameraID int64) {
	id := strconv.FormatInt(cameraID, 10)
	framesDelivered.DeleteLabelValues(id)
	framesDropped.DeleteLabelValues(id)

	streamCacheMu.Lock()
	delete(streamCache, id)
	streamCacheMu.Unlock()
}

// GetStreamStats returns a copy of a session's frame counters, or nil.
func GetStreamStats(cameraID int64) *StreamStats {
	streamCacheMu.RLock()
	defer streamCacheMu.RUnlock()
	if s, ok := streamCache[strconv.FormatInt(cameraID, 10)]; ok {
		dup := *s
		return &dup
	}
	return nil
}

func updateStream(id string, update func(*StreamStats)) {
	streamCacheMu.Lock()
	defer streamCacheMu.Unlock()
	s, ok := streamCache[id]
	if !ok {
		s = &StreamStats{}
		streamCache[id] = s
	}
	update(s)
}
