package sink

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/org/exposuregraph/pkg/models"
)

// dynamoAPI is the subset of the DynamoDB client the sink uses.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoSink persists score records to a DynamoDB table keyed by role ARN.
type DynamoSink struct {
	client dynamoAPI
	table  string
}

// NewDynamoSink creates a DynamoSink from an AWS config and table name.
func NewDynamoSink(cfg aws.Config, table string) *DynamoSink {
	return &DynamoSink{client: dynamodb.NewFromConfig(cfg), table: table}
}

func (s *DynamoSink) Put(ctx context.Context, rec models.ScoreRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshaling score record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("writing score for %s: %w", rec.ARN, err)
	}
	return nil
}

func (s *DynamoSink) Close() {}
