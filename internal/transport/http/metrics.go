package httptransport

import "expvar"

var (
	metricJoinTotal  = expvar.NewInt("http_join_total")
	metricJoinErrors = expvar.NewInt("http_join_errors_total")

	metricMessageTotal  = expvar.NewInt("http_message_total")
	metricMessageErrors = expvar.NewInt("http_message_errors_total")

	metricPresenceWebhookTotal = expvar.NewInt("http_presence_webhook_total")
)
