package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainhealth/chainhealth/internal/derive"
	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// Bitnodes polls the bitnodes.io network snapshot and computes node
// decentralization metrics: ASN concentration, Tor share, and client
// implementation entropy. Bitnodes throttles hard, so this collector
// should run far less often than the others.
type Bitnodes struct {
	client       *Client
	measurements scorecard.MeasurementStore
	archive      Archiver
	log          *zap.Logger
	now          func() time.Time
}

func NewBitnodes(client *Client, measurements scorecard.MeasurementStore, archive Archiver, log *zap.Logger) *Bitnodes {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bitnodes{
		client:       client,
		measurements: measurements,
		archive:      archive,
		log:          log,
		now:          time.Now,
	}
}

func (b *Bitnodes) Name() string { return "bitnodes" }

// WithNow overrides the clock, for tests.
func (b *Bitnodes) WithNow(now func() time.Time) *Bitnodes {
	b.now = now
	return b
}

// Node entry indexes in the bitnodes snapshot arrays.
const (
	nodeFieldUserAgent = 1
	nodeFieldHostname  = 5
	nodeFieldASN       = 11
)

func (b *Bitnodes) Collect(ctx context.Context) error {
	body, err := b.client.Get(ctx, "/snapshots/latest/", nil)
	if err != nil {
		return err
	}
	if b.archive != nil {
		key := fmt.Sprintf("bitnodes/%s/snapshot.json", b.now().UTC().Format("2006-01-02"))
		if aerr := b.archive.Put(ctx, key, body); aerr != nil {
			b.log.Warn("archiving payload failed", zap.String("key", key), zap.Error(aerr))
		}
	}

	var payload struct {
		TotalNodes int              `json:"total_nodes"`
		Nodes      map[string][]any `json:"nodes"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	if len(payload.Nodes) == 0 {
		b.log.Warn("bitnodes snapshot had no nodes")
		return nil
	}

	asnCounts := make(map[string]int)
	agentCounts := make(map[string]int)
	torNodes := 0

	for _, info := range payload.Nodes {
		asn := nodeField(info, nodeFieldASN)
		hostname := nodeField(info, nodeFieldHostname)
		if asn == "TOR" || strings.HasSuffix(strings.ToLower(hostname), ".onion") {
			torNodes++
			asnCounts["TOR"]++
		} else if asn != "" {
			asnCounts[asn]++
		} else {
			asnCounts["unknown"]++
		}

		agent := simplifyUserAgent(nodeField(info, nodeFieldUserAgent))
		agentCounts[agent]++
	}

	total := len(payload.Nodes)
	asnShares := make([]float64, 0, len(asnCounts))
	for _, count := range asnCounts {
		asnShares = append(asnShares, float64(count))
	}

	ts := b.now().Unix()
	metrics := []struct {
		id    string
		value float64
	}{
		{"decent.reachable_nodes", float64(total)},
		{"decent.node_asn_hhi", derive.HHI(asnShares)},
		{"decent.node_asn_top3", derive.TopShare(asnShares, 3)},
		{"decent.tor_share", float64(torNodes) / float64(total)},
		{"decent.client_entropy", normalizedEntropy(agentCounts)},
	}
	for _, m := range metrics {
		meas := scorecard.Measurement{MetricID: m.id, Timestamp: ts, Value: m.value}
		if err := b.measurements.Upsert(ctx, meas); err != nil {
			return err
		}
	}

	b.log.Info("collected bitnodes snapshot",
		zap.Int("nodes", total),
		zap.Int("tor_nodes", torNodes),
		zap.Int("asns", len(asnCounts)))
	return nil
}

// nodeField safely reads a string field from a bitnodes node entry.
func nodeField(info []any, idx int) string {
	if idx >= len(info) {
		return ""
	}
	s, _ := info[idx].(string)
	return s
}

// simplifyUserAgent collapses a node user agent like
// "/Satoshi:27.1.0/" to implementation and major.minor, "Satoshi/27.1".
func simplifyUserAgent(agent string) string {
	agent = strings.Trim(agent, "/")
	if agent == "" {
		return "unknown"
	}
	name, version, ok := strings.Cut(agent, ":")
	if !ok {
		return name
	}
	parts := strings.Split(version, ".")
	if len(parts) >= 2 {
		version = parts[0] + "." + parts[1]
	}
	return name + "/" + version
}

// normalizedEntropy returns the Shannon entropy of the count
// distribution, normalized to [0,1] by the maximum entropy for that
// many categories. A single category yields 0.
func normalizedEntropy(counts map[string]int) float64 {
	if len(counts) < 2 {
		return 0
	}
	var total float64
	for _, c := range counts {
		total += float64(c)
	}
	if total == 0 {
		return 0
	}
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy / math.Log2(float64(len(counts)))
}
