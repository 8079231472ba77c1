package metrics

// LiveStatsOpened should be called when an upstream stats channel connects.
func LiveStatsOpened() {
	LiveStatsConnections.Inc()
}

// LiveStatsClosed should be called when a connected channel drops.
func LiveStatsClosed() {
	LiveStatsConnections.Dec()
}

// LiveStatsRetried records a reconnect attempt.
func LiveStatsRetried() {
	LiveStatsReconnects.Inc()
}

// LiveStatsMessage records a received message by type. Unparseable messages
// are counted as "malformed".
func LiveStatsMessage(msgType string) {
	switch msgType {
	case "stats_update", "pong", "malformed":
	default:
		msgType = "other"
	}
	LiveStatsMessages.WithLabelValues(msgType).Inc()
}

// LoginSucceeded records a completed login.
func LoginSucceeded() {
	LoginsTotal.WithLabelValues("success").Inc()
}

// LoginFailed records a failed login with a bounded reason label.
func LoginFailed(reason string) {
	LoginsTotal.WithLabelValues(reason).Inc()
}

// RateLimited records a request rejected by the named limiter.
func RateLimited(limiter string) {
	RateLimitRejections.WithLabelValues(limiter).Inc()
}
