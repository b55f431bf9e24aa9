// Package signature computes the 16-byte canonical fingerprints the
// aggregation engine uses as cache keys. Two requests that differ only
// in map-iteration order, timestamps, or sample values must still
// produce equal signatures so they merge into the same cache entry;
// see the per-function docs for exactly which fields are absorbed.
package signature

import (
	"crypto/md5"
	"encoding/hex"
	"sort"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
)

// Signature is a 16-byte canonical fingerprint used as a cache key.
type Signature [md5.Size]byte

// String returns the signature's hex encoding, suitable as a
// singleflight.Group key or a log field.
func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// delimiter separates fields in the canonical encoding even when an
// adjacent field is empty, so "a","bc" and "ab","c" never collide.
const delimiter = byte(0x00)

// hasher accumulates the canonical byte stream for one signature.
type hasher struct {
	h [md5.Size]byte
	w []byte
}

func newHasher() *hasher {
	return &hasher{w: make([]byte, 0, 256)}
}

func (h *hasher) sep() *hasher {
	h.w = append(h.w, delimiter)
	return h
}

func (h *hasher) str(s string) *hasher {
	h.w = append(h.w, s...)
	return h
}

func (h *hasher) sum() Signature {
	return Signature(md5.Sum(h.w))
}

// sortedLabels returns the keys of m sorted ascending, so mapping
// fields hash independently of Go's randomized map iteration order.
func sortedLabels(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h *hasher) labels(m map[string]string) *hasher {
	for _, k := range sortedLabels(m) {
		h.sep().str(k).sep().str(m[k])
	}
	return h
}

// GenerateReportOperationSignature fingerprints a Report operation by
// consumer id, operation name, and label set. Metric samples, log
// entries, and timestamps are deliberately excluded: operations that
// differ only in those fields are the same logical operation and must
// merge into one cache entry.
func GenerateReportOperationSignature(op *scpb.Operation) Signature {
	h := newHasher()
	h.str(op.ConsumerID).sep().str(op.OperationName)
	h.labels(op.Labels)
	return h.sum()
}

// GenerateReportMetricValueSignature fingerprints a single metric
// sample within a metric value set, by its labels and (for Money
// samples only) its currency code. Values and timestamps are excluded
// so that samples differing only in amount or time window are treated
// as the same series and merged rather than kept as separate entries.
func GenerateReportMetricValueSignature(mv *scpb.MetricValue) Signature {
	h := newHasher()
	h.labels(mv.Labels)
	if mv.Kind == scpb.MoneyValue {
		h.sep().str(mv.MoneyVal.CurrencyCode)
	}
	return h.sum()
}

// GenerateCheckRequestSignature fingerprints a Check or Quota request:
// the operation name, consumer id, operation labels, then for each
// metric value set (in message order) the metric name followed by each
// contained sample's signature inputs, and finally a delimiter followed
// by quotaProperties, when present, as key-sorted pairs. The quota mode
// is not part of the signature.
func GenerateCheckRequestSignature(op *scpb.Operation, quotaProperties map[string]string) Signature {
	h := newHasher()
	h.str(op.OperationName).sep().str(op.ConsumerID)
	h.labels(op.Labels)

	for _, mvs := range op.MetricValueSets {
		h.sep().str(mvs.MetricName)
		for i := range mvs.Values {
			mv := &mvs.Values[i]
			h.labels(mv.Labels)
			if mv.Kind == scpb.MoneyValue {
				h.sep().str(mv.MoneyVal.CurrencyCode)
			}
		}
	}

	h.sep()
	h.labels(quotaProperties)
	return h.sum()
}

// GenerateQuotaOperationSignature fingerprints a Quota operation the
// same way a Report operation is fingerprinted: consumer id, operation
// name, and labels. Quota operations carry only int64 DELTA samples so
// no metric-value signature is needed to disambiguate merges.
func GenerateQuotaOperationSignature(op *scpb.Operation) Signature {
	return GenerateReportOperationSignature(op)
}
