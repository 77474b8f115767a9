// cmd/booking-service/main.go
package main

import (
	"context"
	"os"
	"time"

	"tripnexus/internal/pkg/bootstrap"
	"tripnexus/internal/pkg/constants"
	"tripnexus/internal/pkg/httpclient"
	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/mq"
	"tripnexus/internal/pkg/redis"
	"tripnexus/internal/service/booking/application"
	"tripnexus/internal/service/booking/domain/port"
	"tripnexus/internal/service/booking/infrastructure"
	"tripnexus/internal/service/booking/infrastructure/adapter"
	"tripnexus/internal/service/booking/interfaces"

	"go.opentelemetry.io/otel"
)

const (
	serviceName              = "booking-service"
	fulfillmentConsumerGroup = "booking-fulfillment-group"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	var consumer *interfaces.FulfillmentConsumerAdapter

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8091,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Config
			tracer := otel.Tracer(serviceName)

			// 1. 基础设施
			db, err := infrastructure.NewDB(cfg.Infra.Mysql.DSN)
			if err != nil {
				logger.Logger.Fatal().Err(err).Msg("failed to connect to mysql")
			}
			redisClient := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)

			orderRepo := infrastructure.NewGormOrderRepository(db)
			ledgerRepo := infrastructure.NewGormLedgerRepository(db)
			exceptionRepo := infrastructure.NewGormExceptionRepository(db)

			// 2. 分布式锁：默认Redis，LOCK_BACKEND=zookeeper 时切换到ZK临时节点
			var locks port.LockManager
			if os.Getenv("LOCK_BACKEND") == "zookeeper" {
				locks, err = adapter.NewZookeeperLockAdapter(cfg.Infra.Zookeeper.Servers, 5*time.Second)
			} else {
				locks, err = adapter.NewRedisLockAdapter(redisClient)
			}
			if err != nil {
				logger.Logger.Fatal().Err(err).Msg("failed to initialize lock manager")
			}

			flusher := adapter.NewFingerprintFlushAdapter(redisClient)

			// 3. 出站适配器
			httpClient := httpclient.NewClient(tracer)
			resourceClient := adapter.NewResourceHTTPAdapter(
				httpClient,
				cfg.App.Fulfillment.UpstreamEndpoint,
				cfg.App.Fulfillment.UpstreamServiceName,
				appCtx.Nacos,
			)
			fulfillmentQueue := adapter.NewFulfillmentKafkaAdapter(
				mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, constants.TopicFulfillmentJobs),
			)
			exceptionNotifier := adapter.NewExceptionKafkaNotifier(
				mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, constants.TopicExceptionEvents),
			)

			// 4. 应用服务
			reservationSvc := application.NewReservationService(ledgerRepo, locks, flusher, cfg.App.Reservation.LockTTL(), tracer)
			exceptionSvc := application.NewExceptionService(exceptionRepo, exceptionNotifier)
			splitter := application.NewOrderSplitter(orderRepo, ledgerRepo, resourceClient, flusher, exceptionSvc, application.RetryPolicy{
				MaxAttempts:     cfg.App.Fulfillment.Attempts(),
				BackoffBase:     cfg.App.Fulfillment.BackoffBase(),
				BackoffJitter:   cfg.App.Fulfillment.BackoffJitter(),
				UpstreamTimeout: cfg.App.Fulfillment.UpstreamTimeout(),
			}, tracer)
			orderSvc := application.NewOrderService(orderRepo, splitter, fulfillmentQueue, tracer)

			// 5. 入站适配器
			handler := interfaces.NewBookingHandler(reservationSvc, orderSvc, splitter, exceptionSvc)
			handler.RegisterRoutes(appCtx.Mux)

			reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, constants.TopicFulfillmentJobs, fulfillmentConsumerGroup)
			failureHandler := mq.NewFailureHandler(cfg.Infra.Kafka.Brokers, constants.TopicFulfillmentJobs+".dlt")
			consumer = interfaces.NewFulfillmentConsumerAdapter(reader, splitter, failureHandler)
		},
		Workers: []func(ctx context.Context){
			func(ctx context.Context) {
				if err := consumer.Start(ctx); err != nil {
					logger.Logger.Error().Err(err).Msg("failed to start fulfillment consumer")
					return
				}
				<-ctx.Done()
				consumer.Stop(context.Background())
			},
		},
	})
}
