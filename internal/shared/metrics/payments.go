package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Payments reúne as métricas do fluxo de depósito.
type Payments struct {
	InitTotal      *prometheus.CounterVec
	WebhookTotal   *prometheus.CounterVec
	CreditedTotal  prometheus.Counter
	GatewayLatency *prometheus.HistogramVec
}

func NewPayments(reg prometheus.Registerer) *Payments {
	p := &Payments{
		InitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_init_requests_total",
			Help: "inicializações de pagamento por resultado",
		}, []string{"result"}),
		WebhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "webhooks do gateway por desfecho",
		}, []string{"outcome"}),
		CreditedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_credited_minor_units_total",
			Help: "soma creditada em saldo (unidades mínimas)",
		}),
		GatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_gateway_request_seconds",
			Help:    "latência das chamadas ao gateway",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
	}
	reg.MustRegister(p.InitTotal, p.WebhookTotal, p.CreditedTotal, p.GatewayLatency)
	return p
}

func (p *Payments) OnInit(result string) { p.InitTotal.WithLabelValues(result).Inc() }

func (p *Payments) OnReconcile(outcome string) { p.WebhookTotal.WithLabelValues(outcome).Inc() }

func (p *Payments) OnCredit(amount int64) { p.CreditedTotal.Add(float64(amount)) }

func (p *Payments) OnGatewayCall(status string, d time.Duration) {
	p.GatewayLatency.WithLabelValues(status).Observe(d.Seconds())
}

// RegisterWSConnections expõe as conexões abertas do feed websocket
func RegisterWSConnections(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "payment_ws_connections",
		Help: "conexões abertas no feed websocket de depósitos",
	}, func() float64 { return float64(count()) }))
}
