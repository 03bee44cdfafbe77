package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	DepositsCreatedTotal    prometheus.Counter
	DepositsResolvedTotal   *prometheus.CounterVec // label: status (confirmed/expired/canceled)
	SettledAmountTotal      prometheus.Counter     // 以最小货币单位累计
	ReferralBonusTotal      *prometheus.CounterVec // label: level (1/2)
	OracleErrorsTotal       prometheus.Counter
	BalanceMismatchTotal    prometheus.Counter // 非精确匹配的到账 (多付/少付)，需人工对账
	PollDuration            prometheus.Histogram
	ReconcilerActiveTasks   prometheus.Gauge
	WalletPoolIdle          prometheus.Gauge
	WalletsProvisionedTotal prometheus.Counter
	SweepDuration           prometheus.Histogram
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		DepositsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payment_deposits_created_total",
			Help: "The total number of deposit requests created",
		}),
		DepositsResolvedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_deposits_resolved_total",
			Help: "The total number of deposits reaching a terminal state",
		}, []string{"status"}),
		SettledAmountTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payment_settled_amount_total",
			Help: "The total settled amount in minor units",
		}),
		ReferralBonusTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_referral_bonus_total",
			Help: "The total referral bonus credited in minor units",
		}, []string{"level"}),
		OracleErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payment_oracle_errors_total",
			Help: "The total number of failed balance oracle queries",
		}),
		BalanceMismatchTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payment_balance_mismatch_total",
			Help: "Observed balance deltas that do not exactly match any open deposit",
		}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_reconcile_poll_duration_seconds",
			Help:    "Duration of a single reconcile poll iteration",
			Buckets: prometheus.DefBuckets,
		}),
		ReconcilerActiveTasks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "payment_reconciler_active_tasks",
			Help: "Number of deposit watcher goroutines currently running",
		}),
		WalletPoolIdle: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "payment_wallet_pool_idle",
			Help: "Number of idle wallets in the pool",
		}),
		WalletsProvisionedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payment_wallets_provisioned_total",
			Help: "The total number of wallets generated for the pool",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_sweep_duration_seconds",
			Help:    "Duration of a single fund collection job",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
