package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"StockRadar/pkg/api"
	"StockRadar/pkg/chat"
	"StockRadar/pkg/config"
	"StockRadar/pkg/database"
	"StockRadar/pkg/entitlement"
	"StockRadar/pkg/messaging"
	"StockRadar/pkg/model"
	"StockRadar/pkg/pricesource"
	"StockRadar/pkg/scheduler"
	"StockRadar/pkg/watch"
)

func main() {
	log.Println("启动StockRadar服务...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	// 连接数据库
	db, err := database.NewPostgres(cfg)
	if err != nil {
		log.Fatalf("连接数据库失败: %v\n", err)
	}
	defer db.Close()

	// 连接NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("连接NATS失败: %v\n", err)
	}
	defer natsClient.Close()

	// 外部协作方客户端
	quoteFetcher := pricesource.NewClient(cfg)
	chatClient := chat.NewClient(cfg)

	// 轮询调度器
	poller := scheduler.NewPoller(cfg, db.Workspace(), db.Subscription(), quoteFetcher, chatClient, natsClient)
	if err := poller.Start(); err != nil {
		log.Fatalf("启动轮询调度器失败: %v\n", err)
	}
	defer poller.Stop()

	// 计费权益对账器, 消费计费事件流
	reconciler := entitlement.NewReconciler(cfg, db.Workspace(), db.Plan(), db.Assignment())
	consumerName := cfg.NATS.ClientID + "-billing"
	err = natsClient.Subscribe(messaging.BillingStream, consumerName, "billing.events", func(data []byte) error {
		var event model.BillingEvent
		if err := json.Unmarshal(data, &event); err != nil {
			// 格式错误的事件重投也无济于事, 记录后确认
			log.Printf("解析计费事件失败, 已丢弃: %v", err)
			return nil
		}
		return reconciler.HandleEvent(context.Background(), event)
	})
	if err != nil {
		log.Fatalf("订阅计费事件失败: %v\n", err)
	}

	// watch服务与API
	watchService := watch.NewService(cfg, db.Workspace(), db.Instrument(), db.Subscription(), db.Assignment())
	handlers := api.NewHandlers(watchService, db.Workspace(), db.Assignment())

	port := cfg.API.Port
	if port == "" {
		port = "8080"
	}
	server := api.NewServer(port)
	server.SetupRoutes(handlers)
	server.Start()

	log.Println("StockRadar服务已退出")
}
