package collector

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
)

type fakeTrail struct {
	pages [][]string // raw CloudTrailEvent payloads per page
}

func (f *fakeTrail) LookupEvents(_ context.Context, params *cloudtrail.LookupEventsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
	idx := 0
	if params.NextToken != nil {
		idx = 1
	}
	out := &cloudtrail.LookupEventsOutput{}
	for _, raw := range f.pages[idx] {
		out.Events = append(out.Events, types.Event{CloudTrailEvent: aws.String(raw)})
	}
	if idx+1 < len(f.pages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

const roleEvent = `{
	"eventSource": "s3.amazonaws.com",
	"eventName": "GetObject",
	"userIdentity": {
		"type": "AssumedRole",
		"sessionContext": {"sessionIssuer": {"arn": "arn:aws:iam::123456789012:role/app"}}
	}
}`

func TestCollectUsageAggregates(t *testing.T) {
	second := `{
		"eventSource": "dynamodb.amazonaws.com",
		"eventName": "Query",
		"userIdentity": {
			"type": "AssumedRole",
			"sessionContext": {"sessionIssuer": {"arn": "arn:aws:iam::123456789012:role/app"}}
		}
	}`
	c := &UsageCollector{client: &fakeTrail{pages: [][]string{
		{roleEvent, roleEvent}, // repeated use dedupes
		{second},
	}}}

	usage, err := c.CollectUsage(context.Background(), time.Now().Add(-90*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"arn:aws:iam::123456789012:role/app": {"dynamodb:Query", "s3:GetObject"},
	}
	if !reflect.DeepEqual(usage, want) {
		t.Errorf("expected %v got %v", want, usage)
	}
}

func TestCollectUsageSkipsUnattributable(t *testing.T) {
	c := &UsageCollector{client: &fakeTrail{pages: [][]string{{
		`not json`,
		`{"eventSource":"s3.amazonaws.com","eventName":"GetObject","userIdentity":{"type":"IAMUser"}}`,
		``,
	}}}}
	usage, err := c.CollectUsage(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unattributable events must not be fatal: %v", err)
	}
	if len(usage) != 0 {
		t.Errorf("expected empty usage, got %v", usage)
	}
}

func TestAttributeEvent(t *testing.T) {
	arn, action, ok := attributeEvent(roleEvent)
	if !ok {
		t.Fatal("expected event to be attributable")
	}
	if arn != "arn:aws:iam::123456789012:role/app" {
		t.Errorf("arn: got %q", arn)
	}
	if action != "s3:GetObject" {
		t.Errorf("action: got %q", action)
	}
}
