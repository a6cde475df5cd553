package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-pipeline/internal/aws"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/config"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/consumer"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/logging"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/notify"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/orders"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/pipeline"
	"github.com/imrishuroy/go-orderflow-pipeline/internal/steps"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpointOverride)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	dispatcher := notify.NewDispatcher(cfg.SideEffectQueueSize, cfg.SideEffectTimeout, logger)
	defer dispatcher.Close()
	sink := notify.NewSink(
		dispatcher,
		notify.NewSNSNotifier(clients.SNS, cfg.SNSTopicARN, logger),
		notify.NewCloudWatchReporter(clients.CloudWatch, cfg.MetricsNamespace, logger),
		logger,
	)

	store := orders.NewStore(clients.DynamoDB, cfg.OrdersTable)
	machine := pipeline.NewMachine(
		store,
		steps.Default(steps.Config{
			InventoryShortageRate: cfg.InventoryShortageRate,
			PaymentDeclineRate:    cfg.PaymentDeclineRate,
		}, logger),
		sink,
		logger,
		pipeline.WithStepDelay(cfg.StepDelay),
	)
	handler := consumer.NewHandler(
		consumer.NewConsumer(machine, sink, cfg.WorkerConcurrency, logger),
		sink,
		logger,
	)

	// RUN_LOCAL processes one message from LOCAL_SQS_BODY and exits. Without
	// a body it creates a sample PENDING order and processes that.
	if cfg.RunLocal {
		body := cfg.LocalSQSBody
		if body == "" {
			o, err := store.Create(context.Background(), localOrder())
			if err != nil {
				logger.Fatal("failed to create local order", zap.Error(err))
			}
			b, _ := json.Marshal(consumer.WorkItem{
				OrderID:   o.OrderID,
				Action:    consumer.ActionProcessOrder,
				Timestamp: o.Timestamp,
			})
			body = string(b)
		}
		resp, err := handler.HandleSQSEvent(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-message-1", Body: body}},
		})
		if err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		logger.Info("local run finished", zap.Int("batch_item_failures", len(resp.BatchItemFailures)))
		return
	}

	lambda.Start(handler.HandleSQSEvent)
}

func localOrder() orders.Order {
	return orders.Order{
		OrderID:    uuid.NewString(),
		CustomerID: "local-customer",
		Items: []orders.Item{
			{ProductID: "local-sku-1", Name: "Sample item", Quantity: 2, UnitPrice: orders.MustAmount("12.50")},
		},
		TotalAmount: orders.MustAmount("25.00"),
	}
}
