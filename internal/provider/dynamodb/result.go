package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// PutResult stores a scenario result under its scenario and run ID.
func (p *DynamoDBProvider) PutResult(ctx context.Context, result types.ScenarioResult) error {
	if result.Scenario == "" || result.RunID == "" {
		return errors.New("result requires scenario and run ID")
	}
	item, err := attributevalue.MarshalMap(result)
	if err != nil {
		return fmt.Errorf("marshaling result %s: %w", result.RunID, err)
	}
	item[attrPK] = &ddbtypes.AttributeValueMemberS{Value: scenarioPK(result.Scenario)}
	item[attrSK] = &ddbtypes.AttributeValueMemberS{Value: runSK(result.RunID)}
	item[attrGSI1PK] = &ddbtypes.AttributeValueMemberS{Value: typeResult}
	item[attrGSI1SK] = &ddbtypes.AttributeValueMemberS{Value: result.RunID}
	if p.retentionTTL > 0 {
		item[attrTTL] = p.ttlValue()
	}

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &p.tableName,
		Item:      item,
	})
	return err
}

// GetResult retrieves one result. It returns nil, nil when the run is
// unknown or has expired.
func (p *DynamoDBProvider) GetResult(ctx context.Context, scenario, runID string) (*types.ScenarioResult, error) {
	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &p.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			attrPK: &ddbtypes.AttributeValueMemberS{Value: scenarioPK(scenario)},
			attrSK: &ddbtypes.AttributeValueMemberS{Value: runSK(runID)},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil || isExpired(extractTTL(out.Item)) {
		return nil, nil
	}

	var result types.ScenarioResult
	if err := attributevalue.UnmarshalMap(out.Item, &result); err != nil {
		return nil, fmt.Errorf("unmarshaling result %s: %w", runID, err)
	}
	return &result, nil
}

// ListResults returns recent results for a scenario, newest first.
func (p *DynamoDBProvider) ListResults(ctx context.Context, scenario string, limit int) ([]types.ScenarioResult, error) {
	out, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &p.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: scenarioPK(scenario)},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixRun},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            listLimit(limit),
	})
	if err != nil {
		return nil, err
	}
	return p.unmarshalResults(out.Items), nil
}

// ListAllResults returns recent results across all scenarios, newest first.
func (p *DynamoDBProvider) ListAllResults(ctx context.Context, limit int) ([]types.ScenarioResult, error) {
	out, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &p.tableName,
		IndexName:              aws.String(indexGSI1),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: typeResult},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            listLimit(limit),
	})
	if err != nil {
		return nil, err
	}
	return p.unmarshalResults(out.Items), nil
}

func (p *DynamoDBProvider) unmarshalResults(items []map[string]ddbtypes.AttributeValue) []types.ScenarioResult {
	var results []types.ScenarioResult
	for _, item := range items {
		if isExpired(extractTTL(item)) {
			continue
		}
		var r types.ScenarioResult
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			p.logger.Warn("skipping corrupt result item", "error", err)
			continue
		}
		results = append(results, r)
	}
	return results
}
