package room

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codehuddle",
		Subsystem: "room",
		Name:      "operations_total",
		Help:      "Room operations by operation and result.",
	}, []string{"operation", "result"})

	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codehuddle",
		Subsystem: "room",
		Name:      "rooms",
		Help:      "Number of rooms in the room list.",
	})
)

// observe records the outcome of a room operation.
func observe(operation string, err error) {
	operationsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRoomNotFound):
		return "not_found"
	case errors.Is(err, ErrRoomFull):
		return "limit_reached"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotParticipant), errors.Is(err, ErrNotOwner):
		return "forbidden"
	case errors.Is(err, ErrRevisionConflict), errors.Is(err, ErrSnapshotConflict):
		return "conflict"
	case errors.Is(err, ErrPreviewLocked):
		return "locked"
	case IsValidationError(err):
		return "invalid"
	default:
		return "error"
	}
}
