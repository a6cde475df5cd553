// Package idempotency stores Idempotency-Key records for the order intake API.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/aws"
)

// condKeyExists stops updates from creating records for unknown keys.
const condKeyExists = "attribute_exists(idempotency_key)"

// ErrNotFound is returned by updates on a key that was never created.
var ErrNotFound = errors.New("idempotency record not found")

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow is how long a key is remembered (e.g. 48*time.Hour).
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Table returns the idempotency table name.
func (s *Store) Table() string { return s.tableName }

// NewRecord builds an IN_PROGRESS record for key that points at an order.
func (s *Store) NewRecord(key, orderID, orderTimestamp string) Record {
	now := s.nowFunc().UTC()
	return Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		OrderID:        orderID,
		OrderTimestamp: orderTimestamp,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}
}

// Get retrieves an idempotency record by key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            keyOf(key),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores the response replayed to retries.
func (s *Store) MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error {
	return s.update(ctx, key, "SET #s = :status, response_body = :rb, response_status = :rs, updated_at = :ua",
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: StatusDone},
			":rb":     &types.AttributeValueMemberS{Value: responseBody},
			":rs":     &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
		})
}

// MarkFailed marks the record FAILED with a note so the client may retry.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	return s.update(ctx, key, "SET #s = :status, note = :n, updated_at = :ua",
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: StatusFailed},
			":n":      &types.AttributeValueMemberS{Value: note},
		})
}

func (s *Store) update(ctx context.Context, key, expr string, values map[string]types.AttributeValue) error {
	ua, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}
	values[":ua"] = ua

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       keyOf(key),
		UpdateExpression:          sdkaws.String(expr),
		ConditionExpression:       sdkaws.String(condKeyExists),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionalFailure(err) {
			return fmt.Errorf("update %s: %w", key, ErrNotFound)
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	}
}

func isConditionalFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}
