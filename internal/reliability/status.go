package reliability

import "x402index/internal/storage"

// Status is the coarse health label shown for an endpoint.
type Status string

const (
	StatusOperational Status = "operational"
	StatusDegraded    Status = "degraded"
	StatusDown        Status = "down"
	StatusUnknown     Status = "unknown"
)

// RecentPingWindow is how many of the latest pings DetermineStatus expects.
const RecentPingWindow = 10

// DetermineStatus labels an endpoint from its activity flag, failure streak,
// 24h uptime and most recent pings.
func DetermineStatus(isActive bool, consecutiveFailures int, uptime24h *float64, recent []storage.Ping) Status {
	if !isActive {
		return StatusDown
	}
	if len(recent) == 0 {
		return StatusUnknown
	}

	ok := 0
	for _, p := range recent {
		if p.Success {
			ok++
		}
	}
	rate := float64(ok) / float64(len(recent))

	switch {
	case rate >= 0.9 && consecutiveFailures == 0:
		return StatusOperational
	case rate >= 0.5, uptime24h != nil && *uptime24h >= 90:
		return StatusDegraded
	default:
		return StatusDown
	}
}
