package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/rs/zerolog/log"
)

// cloudtrailAPI is the subset of the CloudTrail client the collector uses.
type cloudtrailAPI interface {
	LookupEvents(ctx context.Context, params *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error)
}

// UsageCollector aggregates CloudTrail events into per-role sets of used
// actions over the lookback window.
type UsageCollector struct {
	client cloudtrailAPI
}

// NewUsageCollector creates a collector using the given (usually
// assumed-role) config.
func NewUsageCollector(cfg aws.Config) *UsageCollector {
	return &UsageCollector{client: cloudtrail.NewFromConfig(cfg)}
}

// trailEvent is the subset of a CloudTrail event record consulted for usage
// attribution. Only events invoked under an assumed role session carry a
// session-issuer role ARN.
type trailEvent struct {
	EventSource  string `json:"eventSource"`
	EventName    string `json:"eventName"`
	UserIdentity struct {
		Type           string `json:"type"`
		SessionContext struct {
			SessionIssuer struct {
				ARN string `json:"arn"`
			} `json:"sessionIssuer"`
		} `json:"sessionContext"`
	} `json:"userIdentity"`
}

// CollectUsage scans events since windowStart and returns role ARN → sorted
// distinct "<service>:<operation>" action names. Events that cannot be parsed
// or that carry no role attribution are skipped.
func (c *UsageCollector) CollectUsage(ctx context.Context, windowStart time.Time) (map[string][]string, error) {
	used := map[string]map[string]bool{}

	paginator := cloudtrail.NewLookupEventsPaginator(c.client, &cloudtrail.LookupEventsInput{
		StartTime: aws.Time(windowStart),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("looking up cloudtrail events: %w", err)
		}
		for _, event := range page.Events {
			roleARN, action, ok := attributeEvent(aws.ToString(event.CloudTrailEvent))
			if !ok {
				continue
			}
			if used[roleARN] == nil {
				used[roleARN] = map[string]bool{}
			}
			used[roleARN][action] = true
		}
	}

	out := make(map[string][]string, len(used))
	for arn, actions := range used {
		names := make([]string, 0, len(actions))
		for a := range actions {
			names = append(names, a)
		}
		sort.Strings(names)
		out[arn] = names
	}
	return out, nil
}

// attributeEvent extracts (role ARN, action) from one raw CloudTrail event.
func attributeEvent(raw string) (roleARN, action string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	var ev trailEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		log.Warn().Err(err).Msg("skipping unparseable cloudtrail event")
		return "", "", false
	}
	arn := ev.UserIdentity.SessionContext.SessionIssuer.ARN
	if arn == "" || ev.EventSource == "" || ev.EventName == "" {
		return "", "", false
	}
	service := strings.TrimSuffix(ev.EventSource, ".amazonaws.com")
	return arn, service + ":" + ev.EventName, true
}
