package channel

import "expvar"

var (
	metricChannelsCreated    = expvar.NewInt("channel_tokens_created_total")
	metricConnectionsActive  = expvar.NewInt("channel_connections_active")
	metricConnectionsRefused = expvar.NewInt("channel_connections_refused_total")
	metricSendTotal          = expvar.NewInt("channel_send_total")
	metricSendDropped        = expvar.NewInt("channel_send_dropped_total")
	metricSendSkipped        = expvar.NewInt("channel_send_skipped_total")
)
