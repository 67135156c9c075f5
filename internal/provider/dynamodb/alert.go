package dynamodb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/standbyprobe/pkg/types"
)

// PutAlert persists an alert record. Details are free-form, so the alert
// is stored as a JSON blob rather than as native attributes.
func (p *DynamoDBProvider) PutAlert(ctx context.Context, alert types.Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	item := map[string]ddbtypes.AttributeValue{
		attrPK:     &ddbtypes.AttributeValueMemberS{Value: scenarioPK(alert.Scenario)},
		attrSK:     &ddbtypes.AttributeValueMemberS{Value: alertSK(alert.Timestamp)},
		attrGSI1PK: &ddbtypes.AttributeValueMemberS{Value: typeAlert},
		attrGSI1SK: &ddbtypes.AttributeValueMemberS{Value: alert.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")},
		attrData:   &ddbtypes.AttributeValueMemberS{Value: string(data)},
	}
	if p.retentionTTL > 0 {
		item[attrTTL] = p.ttlValue()
	}

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &p.tableName,
		Item:      item,
	})
	return err
}

// ListAlerts returns recent alerts for a scenario, newest first.
func (p *DynamoDBProvider) ListAlerts(ctx context.Context, scenario string, limit int) ([]types.Alert, error) {
	out, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &p.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: scenarioPK(scenario)},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefixAlert},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            listLimit(limit),
	})
	if err != nil {
		return nil, err
	}

	var alerts []types.Alert
	for _, item := range out.Items {
		data, err := attributeStr(item, attrData)
		if err != nil {
			p.logger.Warn("skipping corrupt alert data", "error", err)
			continue
		}
		var a types.Alert
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			p.logger.Warn("skipping corrupt alert data", "error", err)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}
