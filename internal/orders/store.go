package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/aws"
)

// Secondary indexes on the orders table.
const (
	CustomerIndex = "CustomerIdIndex"
	StatusIndex   = "StatusIndex"
)

const (
	condOrderAbsent    = "attribute_not_exists(orderId)"
	condExpectedStatus = "#s = :expected"
	condNotTerminal    = "attribute_exists(orderId) AND NOT (#s IN (:completed, :failed))"
)

var (
	// ErrNotFound is returned when no record exists for an order id.
	ErrNotFound = errors.New("order not found")
	// ErrStatusMismatch is returned when a conditional status write fails.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrAlreadyExists is returned by Create when the key is taken.
	ErrAlreadyExists = errors.New("order already exists")
	// ErrTransactionCanceled is returned when a conditional put inside a
	// transaction failed, usually because the idempotency key is taken.
	ErrTransactionCanceled = errors.New("transaction canceled")
)

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// prepare fills the bookkeeping fields of a new order.
func (s *Store) prepare(o *Order) {
	now := s.nowFunc()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.Timestamp == "" {
		o.Timestamp = o.CreatedAt.Format(TimestampLayout)
	}
	if o.Status == StatusUnknown {
		o.Status = StatusPending
	}
	o.UpdatedAt = now
}

// Create writes a new order record. The write fails with ErrAlreadyExists
// rather than overwrite an existing record with the same key.
func (s *Store) Create(ctx context.Context, o Order) (Order, error) {
	s.prepare(&o)
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return o, fmt.Errorf("marshal order item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: sdkaws.String(condOrderAbsent),
	})
	if err != nil {
		if isConditionalFailure(err) {
			return o, ErrAlreadyExists
		}
		return o, fmt.Errorf("put item: %w", err)
	}
	return o, nil
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable (with ConditionExpression attribute_not_exists(idempotency_key))
//   - order record in the orders table
//
// idempotencyItem must be a serializable struct with attribute idempotency_key present.
// Returns the order as persisted.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem any, o Order) (Order, error) {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return o, fmt.Errorf("marshal idempotency item: %w", err)
	}

	s.prepare(&o)
	orderMap, err := attributevalue.MarshalMap(o)
	if err != nil {
		return o, fmt.Errorf("marshal order item: %w", err)
	}

	input := &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempotencyTable,
					Item:                idempMap,
					ConditionExpression: sdkaws.String("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: sdkaws.String(condOrderAbsent),
				},
			},
		},
	}

	if _, err := s.client.TransactWriteItems(ctx, input); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return o, fmt.Errorf("%w: %w", ErrTransactionCanceled, err)
		}
		return o, fmt.Errorf("transact write: %w", err)
	}
	return o, nil
}

// Get fetches the most recently written record for orderID.
// Returns ErrNotFound if the order has no record.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:                &s.tableName,
		KeyConditionExpression:   sdkaws.String("#pk = :id"),
		ExpressionAttributeNames: map[string]string{"#pk": "orderId"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: orderID},
		},
		ScanIndexForward: sdkaws.Bool(false),
		Limit:            sdkaws.Int32(1),
		ConsistentRead:   sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Items[0], &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatus sets status, updatedAt and, when non-empty, errorMessage on
// the record identified by key. No other attribute is touched.
//
// With expected set, the write only succeeds while the stored status equals
// expected. With expected == StatusUnknown the write still refuses to
// create a record or to rewrite a terminal one. Both cases report
// ErrStatusMismatch when the condition fails.
func (s *Store) UpdateStatus(ctx context.Context, key Key, expected, next Status, errorMessage string) error {
	if err := next.Validate(); err != nil {
		return err
	}
	now := s.nowFunc()

	updateExpr := "SET #s = :status, updatedAt = :ua"
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: next.String()},
		":ua":     &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	if errorMessage != "" {
		updateExpr += ", errorMessage = :err"
		values[":err"] = &types.AttributeValueMemberS{Value: errorMessage}
	}

	var cond string
	if expected != StatusUnknown {
		cond = condExpectedStatus
		values[":expected"] = &types.AttributeValueMemberS{Value: expected.String()}
	} else {
		cond = condNotTerminal
		values[":completed"] = &types.AttributeValueMemberS{Value: StatusCompleted.String()}
		values[":failed"] = &types.AttributeValueMemberS{Value: StatusFailed.String()}
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"orderId":   &types.AttributeValueMemberS{Value: key.OrderID},
			"timestamp": &types.AttributeValueMemberS{Value: key.Timestamp},
		},
		UpdateExpression:          &updateExpr,
		ConditionExpression:       &cond,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionalFailure(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// ListByCustomer returns a customer's orders through the CustomerIdIndex GSI.
// limit <= 0 means no limit.
func (s *Store) ListByCustomer(ctx context.Context, customerID string, limit int32) ([]Order, error) {
	return s.queryIndex(ctx, CustomerIndex, "customerId", customerID, limit)
}

// ListByStatus returns orders currently in status through the StatusIndex GSI.
func (s *Store) ListByStatus(ctx context.Context, status Status, limit int32) ([]Order, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}
	return s.queryIndex(ctx, StatusIndex, "status", status.String(), limit)
}

func (s *Store) queryIndex(ctx context.Context, index, attr, value string, limit int32) ([]Order, error) {
	input := &dyn.QueryInput{
		TableName:                &s.tableName,
		IndexName:                sdkaws.String(index),
		KeyConditionExpression:   sdkaws.String("#k = :v"),
		ExpressionAttributeNames: map[string]string{"#k": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
	}
	if limit > 0 {
		input.Limit = sdkaws.Int32(limit)
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", index, err)
	}
	result := make([]Order, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &result); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	return result, nil
}

func isConditionalFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}
