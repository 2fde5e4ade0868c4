package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Catalog cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	domainOnce sync.Once

	// PromotionEvaluationsTotal counts engine evaluations by outcome.
	PromotionEvaluationsTotal *prometheus.CounterVec
	// PromotionEvaluationLatency records evaluation latency in milliseconds.
	PromotionEvaluationLatency *prometheus.HistogramVec
	// PromotionRulesAppliedTotal counts rule applications by rule type.
	PromotionRulesAppliedTotal *prometheus.CounterVec
	// PromotionCatalogCacheTotal counts catalog cache lookups by result.
	PromotionCatalogCacheTotal *prometheus.CounterVec
	// CatalogWarmTotal counts catalog warm-up task outcomes.
	CatalogWarmTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PromotionEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_evaluations_total",
			Help:      "Count of promotion engine evaluations by outcome.",
		}, []string{"result"})
		PromotionEvaluationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "promotion_evaluation_duration_ms",
			Help:      "Promotion evaluation latency in milliseconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}, []string{"result"})
		PromotionRulesAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_rules_applied_total",
			Help:      "Count of promotion rules that discounted at least one line.",
		}, []string{"rule_type"})
		PromotionCatalogCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_catalog_cache_total",
			Help:      "Count of promotion catalog cache lookups by result.",
		}, []string{"result"})
		CatalogWarmTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_catalog_warm_total",
			Help:      "Count of promotion catalog warm-up tasks by result.",
		}, []string{"result"})

		reuseCounterVec := func(target **prometheus.CounterVec) func(prometheus.Collector) {
			return func(existing prometheus.Collector) {
				if v, ok := existing.(*prometheus.CounterVec); ok {
					*target = v
				}
			}
		}
		mustRegisterCollector(reg, PromotionEvaluationsTotal, reuseCounterVec(&PromotionEvaluationsTotal))
		mustRegisterCollector(reg, PromotionRulesAppliedTotal, reuseCounterVec(&PromotionRulesAppliedTotal))
		mustRegisterCollector(reg, PromotionCatalogCacheTotal, reuseCounterVec(&PromotionCatalogCacheTotal))
		mustRegisterCollector(reg, CatalogWarmTotal, reuseCounterVec(&CatalogWarmTotal))
		mustRegisterCollector(reg, PromotionEvaluationLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				PromotionEvaluationLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// ObserveCatalogCache records a catalog cache lookup.
func ObserveCatalogCache(result string) {
	if PromotionCatalogCacheTotal != nil {
		PromotionCatalogCacheTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCatalogWarm records a warm-up task outcome.
func ObserveCatalogWarm(result string) {
	if CatalogWarmTotal != nil {
		CatalogWarmTotal.WithLabelValues(result).Inc()
	}
}

// PromotionRecorder feeds engine telemetry into the domain collectors.
type PromotionRecorder struct{}

// ObserveEvaluation records one evaluation outcome and its latency.
func (PromotionRecorder) ObserveEvaluation(result string, elapsed time.Duration) {
	if PromotionEvaluationsTotal != nil {
		PromotionEvaluationsTotal.WithLabelValues(result).Inc()
	}
	if PromotionEvaluationLatency != nil {
		PromotionEvaluationLatency.WithLabelValues(result).Observe(DurationMillis(elapsed))
	}
}

// RuleApplied counts a rule that discounted at least one line.
func (PromotionRecorder) RuleApplied(ruleType string) {
	if PromotionRulesAppliedTotal != nil {
		PromotionRulesAppliedTotal.WithLabelValues(ruleType).Inc()
	}
}
