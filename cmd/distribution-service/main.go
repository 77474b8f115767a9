// cmd/distribution-service/main.go
package main

import (
	"context"

	"tripnexus/internal/pkg/bootstrap"
	"tripnexus/internal/pkg/constants"
	"tripnexus/internal/pkg/httpclient"
	"tripnexus/internal/pkg/logger"
	"tripnexus/internal/pkg/mq"
	"tripnexus/internal/pkg/redis"
	"tripnexus/internal/service/distribution/application"
	"tripnexus/internal/service/distribution/domain"
	"tripnexus/internal/service/distribution/domain/port"
	"tripnexus/internal/service/distribution/infrastructure"
	"tripnexus/internal/service/distribution/infrastructure/rule"
	"tripnexus/internal/service/distribution/interfaces"

	"go.opentelemetry.io/otel"
)

const (
	serviceName           = "distribution-service"
	snapshotConsumerGroup = "distribution-sync-group"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	var consumer *interfaces.SnapshotConsumerAdapter

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8092,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Config

			// 1. 基础设施
			redisClient := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
			store := infrastructure.NewRedisFingerprintStore(redisClient)

			ruleEngine, err := rule.NewCELRuleEngine()
			if err != nil {
				logger.Logger.Fatal().Err(err).Msg("failed to initialize rule engine")
			}

			httpClient := httpclient.NewClient(otel.Tracer(serviceName))
			pusher := infrastructure.NewHTTPChannelPusher(httpClient)

			// 推送失败上报到预订服务的异常单队列；未配置地址时退化为只重试
			var reporter port.ExceptionReporter
			if cfg.App.Sync.BookingEndpoint != "" {
				reporter = infrastructure.NewHTTPExceptionReporter(httpClient, cfg.App.Sync.BookingEndpoint)
			}

			// 2. 渠道来自配置
			channels := make([]domain.Channel, 0, len(cfg.App.Channels))
			for _, ch := range cfg.App.Channels {
				channels = append(channels, domain.Channel{Name: ch.Name, Endpoint: ch.Endpoint, Rule: ch.Rule})
			}

			// 3. 应用服务
			filter := application.NewChangeFilter(store, cfg.App.Sync.FingerprintTTL())
			syncSvc := application.NewSyncService(filter, ruleEngine, pusher, reporter, channels, cfg.App.Sync.Concurrency())

			// 4. 入站适配器
			handler := interfaces.NewDistributionHandler(syncSvc)
			handler.RegisterRoutes(appCtx.Mux)

			reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, constants.TopicInventorySnapshots, snapshotConsumerGroup)
			failureHandler := mq.NewFailureHandler(cfg.Infra.Kafka.Brokers, constants.TopicInventorySnapshots+".dlt")
			consumer = interfaces.NewSnapshotConsumerAdapter(reader, syncSvc, failureHandler)
		},
		Workers: []func(ctx context.Context){
			func(ctx context.Context) {
				if err := consumer.Start(ctx); err != nil {
					logger.Logger.Error().Err(err).Msg("failed to start snapshot consumer")
					return
				}
				<-ctx.Done()
				consumer.Stop(context.Background())
			},
		},
	})
}
