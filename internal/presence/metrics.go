package presence

import "expvar"

var (
	metricConnectEvents     = expvar.NewInt("presence_connect_events_total")
	metricDisconnectEvents  = expvar.NewInt("presence_disconnect_events_total")
	metricStaleIdentity     = expvar.NewInt("presence_stale_identity_total")
	metricDuplicateConnects = expvar.NewInt("presence_duplicate_connects_total")
	metricConflictRetries   = expvar.NewInt("presence_conflict_retries_total")
	metricSessionsDeleted   = expvar.NewInt("presence_sessions_deleted_total")
	metricSyncHandshakes    = expvar.NewInt("presence_sync_handshakes_total")
)
