package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEvent       = "event"
	HeaderContentType = "content-type"

	contentTypeStruct = "application/x-protobuf; messageType=google.protobuf.Struct"
)

var (
	mPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_kafka_published_total", Help: "Messages written by topic and result",
	}, []string{"topic", "result"})
	mConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_kafka_consumed_total", Help: "Messages handled by topic and result",
	}, []string{"topic", "result"})
	mHandleDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "pricewatch_kafka_handle_duration_seconds", Help: "Consumer handler duration",
		Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60},
	}, []string{"topic"})
)

// headers adapts kafka message headers to an otel TextMapCarrier.
// Set replaces an existing key instead of appending a duplicate.
type headers struct{ hs *[]kafka.Header }

func (h headers) Get(k string) string {
	for _, x := range *h.hs {
		if x.Key == k {
			return string(x.Value)
		}
	}
	return ""
}

func (h headers) Set(k, v string) {
	for i := range *h.hs {
		if (*h.hs)[i].Key == k {
			(*h.hs)[i].Value = []byte(v)
			return
		}
	}
	*h.hs = append(*h.hs, kafka.Header{Key: k, Value: []byte(v)})
}

func (h headers) Keys() []string {
	ks := make([]string, 0, len(*h.hs))
	for _, x := range *h.hs {
		ks = append(ks, x.Key)
	}
	return ks
}
