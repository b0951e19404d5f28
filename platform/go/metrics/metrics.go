package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AuthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"service", "result"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of tokens issued or refreshed.",
		},
		[]string{"service", "flow"},
	)

	TokenValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Total number of bearer token validations.",
		},
		[]string{"service", "result"},
	)

	LedgerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of balance operations.",
		},
		[]string{"service", "operation", "result"},
	)
)

func MustRegister(serviceName string) {
	AuthLoginsTotal = AuthLoginsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	TokensIssuedTotal = TokensIssuedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	TokenValidationsTotal = TokenValidationsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	LedgerOperationsTotal = LedgerOperationsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		AuthLoginsTotal,
		TokensIssuedTotal,
		TokenValidationsTotal,
		LedgerOperationsTotal,
	)
}
