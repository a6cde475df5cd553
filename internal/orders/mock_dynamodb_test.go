package orders

import (
	"context"
	"errors"
	"sort"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory table set that understands exactly the
// expressions the stores in this repo send. Items are keyed table -> "pk|sk".
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
	err    error // returned by every call when set
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) table(name string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[name]
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) (string, error) {
	if v, ok := item["orderId"]; ok {
		return str(v) + "|" + str(item["timestamp"]), nil
	}
	if v, ok := item["idempotency_key"]; ok {
		return str(v) + "|", nil
	}
	return "", errors.New("no primary key")
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// put stores a raw item, used by tests to seed state.
func (m *mockDynamo) put(tableName string, item map[string]types.AttributeValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, _ := itemKey(item)
	m.table(tableName)[k] = clone(item)
}

func (m *mockDynamo) get(tableName, orderID, ts string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table(tableName)[orderID+"|"+ts]
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	k, err := itemKey(params.Item)
	if err != nil {
		return nil, err
	}
	tbl := m.table(*params.TableName)
	if params.ConditionExpression != nil && *params.ConditionExpression == condOrderAbsent {
		if _, exists := tbl[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	tbl[k] = clone(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	k, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table(*params.TableName)[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(item)}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	k, err := itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	tbl := m.table(*params.TableName)
	item, exists := tbl[k]
	vals := params.ExpressionAttributeValues

	if params.ConditionExpression != nil {
		switch *params.ConditionExpression {
		case condExpectedStatus:
			if !exists || str(item["status"]) != str(vals[":expected"]) {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case condNotTerminal:
			if !exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
			st := str(item["status"])
			if st == str(vals[":completed"]) || st == str(vals[":failed"]) {
				return nil, &types.ConditionalCheckFailedException{}
			}
		default:
			return nil, errors.New("unsupported condition: " + *params.ConditionExpression)
		}
	}
	if !exists {
		item = clone(params.Key)
	}

	updated := clone(item)
	if v, ok := vals[":status"]; ok {
		updated["status"] = v
	}
	if v, ok := vals[":ua"]; ok {
		updated["updatedAt"] = v
	}
	if v, ok := vals[":err"]; ok {
		updated["errorMessage"] = v
	}
	tbl[k] = updated
	return &dyn.UpdateItemOutput{Attributes: clone(updated)}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var attr, want string
	if params.IndexName == nil {
		attr, want = "orderId", str(params.ExpressionAttributeValues[":id"])
	} else {
		attr, want = params.ExpressionAttributeNames["#k"], str(params.ExpressionAttributeValues[":v"])
	}

	var matched []map[string]types.AttributeValue
	for _, item := range m.table(*params.TableName) {
		if str(item[attr]) == want {
			matched = append(matched, clone(item))
		}
	}
	desc := params.ScanIndexForward != nil && !*params.ScanIndexForward
	sort.Slice(matched, func(i, j int) bool {
		a, b := str(matched[i]["timestamp"]), str(matched[j]["timestamp"])
		if desc {
			return a > b
		}
		return a < b
	})
	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
	}
	return &dyn.QueryOutput{Items: matched, Count: int32(len(matched))}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	// First pass: verify condition expressions
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil || p.ConditionExpression == nil {
			continue
		}
		k, err := itemKey(p.Item)
		if err != nil {
			return nil, err
		}
		if _, exists := m.table(*p.TableName)[k]; exists {
			return nil, &types.TransactionCanceledException{}
		}
	}
	// Second pass: apply all puts
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			k, _ := itemKey(p.Item)
			m.table(*p.TableName)[k] = clone(p.Item)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}
