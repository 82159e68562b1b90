package prom

import (
	"fmt"
	"sync"

	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemLedger        = "ledger"
	SystemOrders        = "orders"
	SystemGateway       = "gateway"
	SystemNotifications = "notifications"
)

const (
	MetricLedgerPostings      = "postings_total"
	MetricLedgerPostedAmount  = "posted_amount_total"
	MetricSettlements         = "settlements_total"
	MetricOrderTransitions    = "transitions_total"
	MetricOrderRejections     = "rejections_total"
	MetricGatewayDuration     = "request_duration_seconds"
	MetricGatewayFailures     = "failures_total"
	MetricNotificationsSent   = "sent_total"
	MetricNotificationsFailed = "failed_total"
)

const (
	TypeCounterVec   = "counterVec"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var lockCreateMetricLock = &sync.Mutex{}
var namespace = "none"

var MetricSystemEnabled = false

var MetricCollectionCounterVec = make(map[string]*prometheus.CounterVec)
var MetricCollectionGaugeVec = make(map[string]*prometheus.GaugeVec)
var MetricCollectionHistogramVec = make(map[string]*prometheus.HistogramVec)

var defaultLabels prometheus.Labels

// Create registers every metric the service reports. It must run once per process.
func Create(host string, env string, nameSpace string) error {
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemLedger, MetricLedgerPostings, []string{"reason"}))
	hasError(createCounterVec(SystemLedger, MetricLedgerPostedAmount, []string{"account_kind"}))
	hasError(createCounterVec(SystemLedger, MetricSettlements, []string{"outcome"}))

	hasError(createCounterVec(SystemOrders, MetricOrderTransitions, []string{"kind", "status"}))
	hasError(createCounterVec(SystemOrders, MetricOrderRejections, []string{"kind", "reason"}))

	hasError(createHistogramVec(SystemGateway, MetricGatewayDuration, []string{"provider", "endpoint"}))
	hasError(createCounterVec(SystemGateway, MetricGatewayFailures, []string{"provider", "endpoint"}))

	hasError(createCounterVec(SystemNotifications, MetricNotificationsSent, []string{"channel"}))
	hasError(createCounterVec(SystemNotifications, MetricNotificationsFailed, []string{"channel"}))

	return err
}

func CreateMetric(metricType, metricSubsystem, metricName string, labels ...string) error {
	switch metricType {
	case TypeCounterVec:
		return createCounterVec(metricSubsystem, metricName, labels)
	case TypeHistogramVec:
		return createHistogramVec(metricSubsystem, metricName, labels)
	case TypeGaugeVec:
		return createGaugeVec(metricSubsystem, metricName, labels)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

func ListenAndServer(addr string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening", "addr", addr, "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Error("[metrics-server] http listen error", "error", err)
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionCounterVec[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionCounterVec[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionHistogramVec[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
		Buckets:     []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, labels)
	return prometheus.Register(MetricCollectionHistogramVec[subsystem+name])
}

func createGaugeVec(subsystem, name string, labels []string) error {
	lockCreateMetricLock.Lock()
	defer lockCreateMetricLock.Unlock()
	MetricCollectionGaugeVec[subsystem+name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(MetricCollectionGaugeVec[subsystem+name])
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionCounterVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func SetGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionGaugeVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Set(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := MetricCollectionHistogramVec[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func ObserveLedgerPosting(reason string) {
	IncCounterVec(SystemLedger, MetricLedgerPostings, reason)
}

func AddPostedAmount(accountKind string, amount int64) {
	if amount < 0 {
		amount = -amount
	}
	AddCounterVec(SystemLedger, MetricLedgerPostedAmount, float64(amount), accountKind)
}

func ObserveSettlement(outcome string) {
	IncCounterVec(SystemLedger, MetricSettlements, outcome)
}

func ObserveOrderTransition(kind, status string) {
	IncCounterVec(SystemOrders, MetricOrderTransitions, kind, status)
}

func ObserveOrderRejection(kind, reason string) {
	IncCounterVec(SystemOrders, MetricOrderRejections, kind, reason)
}

func ObserveGatewayRequest(provider, endpoint string, seconds float64, failed bool) {
	AddHistogramVec(SystemGateway, MetricGatewayDuration, seconds, provider, endpoint)
	if failed {
		IncCounterVec(SystemGateway, MetricGatewayFailures, provider, endpoint)
	}
}

func ObserveNotification(channel string, failed bool) {
	if failed {
		IncCounterVec(SystemNotifications, MetricNotificationsFailed, channel)
		return
	}
	IncCounterVec(SystemNotifications, MetricNotificationsSent, channel)
}
