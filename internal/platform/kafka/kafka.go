// Package kafka holds the topic layout and admin helpers for the audit
// pipeline. Producer and consumer wrappers live in subpackages.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// One topic per audit category so retention can differ: compliance events
// are kept for years, ops events for days.
const (
	TopicAuditCompliance = "linkage.audit.compliance"
	TopicAuditSecurity   = "linkage.audit.security"
	TopicAuditOps        = "linkage.audit.ops"
)

// AuditTopics returns every audit topic the relay publishes to.
func AuditTopics() []string {
	return []string{TopicAuditCompliance, TopicAuditSecurity, TopicAuditOps}
}

// TopicForCategory maps an audit event category to its topic. Unknown
// categories land on the ops topic, which has the shortest retention.
func TopicForCategory(category string) string {
	switch category {
	case "compliance":
		return TopicAuditCompliance
	case "security":
		return TopicAuditSecurity
	default:
		return TopicAuditOps
	}
}

// EnsureAuditTopics creates the audit topics when they do not exist yet.
// Safe to call on every startup.
func EnsureAuditTopics(ctx context.Context, brokers []string, partitions int32, replication int16) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("kafka client: %w", err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, partitions, replication, nil, AuditTopics()...)
	if err != nil {
		return fmt.Errorf("create audit topics: %w", err)
	}
	for _, resp := range resps.Sorted() {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}
