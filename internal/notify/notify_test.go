package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
)

type mockSNS struct {
	mu     sync.Mutex
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, in)
	return &sns.PublishOutput{}, nil
}

func (m *mockSNS) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

var at = time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)

func snapshot() *orders.Order {
	return &orders.Order{
		OrderID:     "0123456789abcdef",
		CustomerID:  "cust-9",
		Items:       []orders.Item{{ProductID: "X"}, {ProductID: "Y"}},
		TotalAmount: orders.MustAmount("25.5"),
	}
}

func TestFormat_Completed(t *testing.T) {
	msg := Format(Event{OrderID: "0123456789abcdef", Kind: KindCompleted, Order: snapshot(), At: at})

	assert.Contains(t, msg, "Order Completed!")
	assert.Contains(t, msg, "Order ID: 01234567...")
	assert.Contains(t, msg, "Customer: cust-9")
	assert.Contains(t, msg, "Items: 2")
	assert.Contains(t, msg, "Total: €25.50")
	assert.Contains(t, msg, "Completed: 2025-05-04 10:30:00 UTC")
}

func TestFormat_Failed(t *testing.T) {
	msg := Format(Event{OrderID: "o1", Kind: KindFailed, ErrorMessage: "Failed at PAYMENT_PROCESSING", At: at})

	assert.Contains(t, msg, "Order Failed!")
	assert.Contains(t, msg, "Order ID: o1...")
	assert.Contains(t, msg, "Customer: Unknown")
	assert.Contains(t, msg, "Reason: Failed at PAYMENT_PROCESSING")
	assert.Contains(t, msg, "Failed: 2025-05-04 10:30:00 UTC")
	assert.Equal(t, "eCommerce Order FAILED", Subject(Event{Kind: KindFailed}))
}

func TestFormat_OtherKind(t *testing.T) {
	assert.Equal(t, "Order o1... - SHIPPED (late)", Format(Event{OrderID: "o1", Kind: "SHIPPED", ErrorMessage: "late"}))
}

func TestSNSNotifier(t *testing.T) {
	t.Run("publishes to the topic", func(t *testing.T) {
		mock := &mockSNS{}
		n := NewSNSNotifier(mock, "arn:aws:sns:us-east-1:1:orders", zap.NewNop())

		require.NoError(t, n.Publish(context.Background(), Event{OrderID: "o1", Kind: KindCompleted, Order: snapshot(), At: at}))
		require.Len(t, mock.inputs, 1)
		assert.Equal(t, "arn:aws:sns:us-east-1:1:orders", *mock.inputs[0].TopicArn)
		assert.Equal(t, "eCommerce Order COMPLETED", *mock.inputs[0].Subject)
	})

	t.Run("missing topic is a no-op", func(t *testing.T) {
		mock := &mockSNS{}
		n := NewSNSNotifier(mock, "", zap.NewNop())

		require.NoError(t, n.Publish(context.Background(), Event{OrderID: "o1", Kind: KindFailed}))
		assert.Zero(t, mock.count())
	})

	t.Run("publish errors are returned", func(t *testing.T) {
		n := NewSNSNotifier(&mockSNS{err: errors.New("endpoint unreachable")}, "arn", zap.NewNop())
		assert.ErrorContains(t, n.Publish(context.Background(), Event{OrderID: "o1", Kind: KindFailed}), "endpoint unreachable")
	})
}

func TestCloudWatchReporter(t *testing.T) {
	mock := &mockCloudWatch{}
	r := NewCloudWatchReporter(mock, "", zap.NewNop())
	r.nowFunc = func() time.Time { return at }

	require.NoError(t, r.Put(context.Background(), 3, 1))
	require.Len(t, mock.inputs, 1)
	in := mock.inputs[0]
	assert.Equal(t, DefaultNamespace, *in.Namespace)
	require.Len(t, in.MetricData, 2)
	assert.Equal(t, MetricSuccessfulOrders, *in.MetricData[0].MetricName)
	assert.Equal(t, 3.0, *in.MetricData[0].Value)
	assert.Equal(t, MetricFailedOrders, *in.MetricData[1].MetricName)
	assert.Equal(t, 1.0, *in.MetricData[1].Value)
	assert.Equal(t, cwtypes.StandardUnitCount, in.MetricData[1].Unit)
	assert.Equal(t, at, *in.MetricData[0].Timestamp)
}

func TestDispatcher_RunsJobsInOrderAndFlushes(t *testing.T) {
	d := NewDispatcher(8, time.Second, zap.NewNop())
	defer d.Close()

	var mu sync.Mutex
	var ran []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, d.Submit("job", func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			ran = append(ran, i)
			return nil
		}))
	}
	require.NoError(t, d.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ran)
}

func TestDispatcher_IsolatesErrorsAndPanics(t *testing.T) {
	d := NewDispatcher(8, time.Second, zap.NewNop())
	defer d.Close()

	d.Submit("fails", func(context.Context) error { return errors.New("boom") })
	d.Submit("panics", func(context.Context) error { panic("kaboom") })
	var after bool
	d.Submit("after", func(context.Context) error { after = true; return nil })

	require.NoError(t, d.Flush(context.Background()))
	assert.True(t, after)
}

func TestDispatcher_JobContextHasTimeout(t *testing.T) {
	d := NewDispatcher(1, 20*time.Millisecond, zap.NewNop())
	defer d.Close()

	var jobErr error
	d.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		jobErr = ctx.Err()
		return jobErr
	})
	require.NoError(t, d.Flush(context.Background()))
	assert.ErrorIs(t, jobErr, context.DeadlineExceeded)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, time.Second, zap.NewNop())
	defer d.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	d.Submit("blocker", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	assert.True(t, d.Submit("queued", func(context.Context) error { return nil }))
	assert.False(t, d.Submit("dropped", func(context.Context) error { return nil }))
	close(release)
	require.NoError(t, d.Flush(context.Background()))
}

func TestDispatcher_ClosedRejects(t *testing.T) {
	d := NewDispatcher(1, time.Second, zap.NewNop())
	d.Close()

	assert.False(t, d.Submit("late", func(context.Context) error { return nil }))
	assert.NoError(t, d.Flush(context.Background()))
}

func TestSink_FailingChannelNeverSurfaces(t *testing.T) {
	d := NewDispatcher(8, time.Second, zap.NewNop())
	defer d.Close()
	snsMock := &mockSNS{err: errors.New("unreachable")}
	cw := &mockCloudWatch{err: errors.New("throttled")}
	s := NewSink(d, NewSNSNotifier(snsMock, "arn", zap.NewNop()), NewCloudWatchReporter(cw, "", zap.NewNop()), zap.NewNop())

	s.Notify(context.Background(), Event{OrderID: "o1", Kind: KindFailed})
	s.ReportMetrics(context.Background(), 0, 1)
	s.Flush(context.Background())

	assert.Zero(t, snsMock.count())
	assert.Empty(t, cw.inputs)
}

func TestSink_SnapshotsOrder(t *testing.T) {
	d := NewDispatcher(8, time.Second, zap.NewNop())
	defer d.Close()
	mock := &mockSNS{}
	s := NewSink(d, NewSNSNotifier(mock, "arn", zap.NewNop()), nil, zap.NewNop())

	o := snapshot()
	s.Notify(context.Background(), Event{OrderID: o.OrderID, Kind: KindCompleted, Order: o})
	o.CustomerID = "mutated"
	s.ReportMetrics(context.Background(), 1, 0)
	s.Flush(context.Background())

	require.Equal(t, 1, mock.count())
	assert.Contains(t, *mock.inputs[0].Message, "Customer: cust-9")
}
