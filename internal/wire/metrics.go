package wire

import (
	"encoding/binary"
	"math"
)

const serviceNameFieldSize = 32
const metricNameFieldSize = 64

// MetricKind mirrors metrics.Kind on the wire.
type MetricKind uint8

const (
	MetricLatency MetricKind = iota
	MetricCounter
	MetricGauge
	MetricHistogram
)

// MetricSample is one named value inside a MetricsSnapshot.
type MetricSample struct {
	Name  string
	Value float64
	Kind  MetricKind
}

// MetricsSnapshot is the fixed-layout message a per-service publisher
// serializes every publish cycle.
type MetricsSnapshot struct {
	ServiceName string
	TimestampNs uint64
	Metrics     []MetricSample
}

const metricSampleSize = metricNameFieldSize + 8 + 1

// EncodeBody serializes {service_name[32], timestamp_ns, metric_count,
// [{name[64], value, kind} x count]}.
func (s MetricsSnapshot) EncodeBody() []byte {
	size := serviceNameFieldSize + 8 + 4 + metricSampleSize*len(s.Metrics)
	buf := make([]byte, size)
	off := 0
	copy(buf[off:], FixedString(s.ServiceName, serviceNameFieldSize))
	off += serviceNameFieldSize
	binary.LittleEndian.PutUint64(buf[off:], s.TimestampNs)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s.Metrics)))
	off += 4
	for _, m := range s.Metrics {
		copy(buf[off:], FixedString(m.Name, metricNameFieldSize))
		off += metricNameFieldSize
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.Value))
		off += 8
		buf[off] = byte(m.Kind)
		off++
	}
	return buf
}

func DecodeMetricsSnapshot(src []byte) MetricsSnapshot {
	off := 0
	serviceName := ParseFixedString(src[off : off+serviceNameFieldSize])
	off += serviceNameFieldSize
	tsNs := binary.LittleEndian.Uint64(src[off:])
	off += 8
	count := binary.LittleEndian.Uint32(src[off:])
	off += 4
	metrics := make([]MetricSample, 0, count)
	for i := uint32(0); i < count; i++ {
		name := ParseFixedString(src[off : off+metricNameFieldSize])
		off += metricNameFieldSize
		value := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
		off += 8
		kind := MetricKind(src[off])
		off++
		metrics = append(metrics, MetricSample{Name: name, Value: value, Kind: kind})
	}
	return MetricsSnapshot{ServiceName: serviceName, TimestampNs: tsNs, Metrics: metrics}
}

func EncodeMetricsSnapshotMessage(tsNs uint64, s MetricsSnapshot) []byte {
	body := s.EncodeBody()
	h := Header{Type: TypeMetricsSnapshot, Sequence: NextSequence(), TimestampNs: tsNs, PayloadSize: uint16(len(body))}
	out := make([]byte, HeaderSize+len(body))
	h.Encode(out)
	copy(out[HeaderSize:], body)
	return out
}
