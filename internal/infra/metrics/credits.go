package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(creditsDebitedTotal, creditsRefundedTotal) }

var creditsDebitedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "credits_debited_total",
		Help: "Total credits reserved at job submission.",
	},
)

var creditsRefundedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "credits_refunded_total",
		Help: "Total credits returned for failed jobs.",
	},
)

func AddCreditsDebited(n int64)  { creditsDebitedTotal.Add(float64(n)) }
func AddCreditsRefunded(n int64) { creditsRefundedTotal.Add(float64(n)) }
