package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/sweetshop/gateway"
	"github.com/example/sweetshop/pkg/cart"
	"github.com/example/sweetshop/pkg/catalog"
	"github.com/example/sweetshop/pkg/checkout"
	"github.com/example/sweetshop/pkg/config"
	"github.com/example/sweetshop/pkg/discovery"
	"github.com/example/sweetshop/pkg/models"
	"github.com/example/sweetshop/pkg/orders"
	"github.com/example/sweetshop/pkg/repository"
)

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting sweetshop server",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to MySQL", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.Product{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{}); err != nil {
		logger.Fatal("Failed to migrate", zap.Error(err))
	}

	cache := repository.NewCache(&cfg.Redis)
	defer cache.Close()

	// Event delivery is best-effort; the shop runs without Mongo.
	var events repository.EventSink
	sink, err := repository.NewMongoEventSink(&cfg.MongoDB)
	if err != nil {
		logger.Warn("Failed to connect to MongoDB, continuing without event sink", zap.Error(err))
	} else {
		events = sink
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sink.Close(ctx)
		}()
	}

	catalogSvc := catalog.NewService(db, cache, events, logger)
	cartSvc := cart.NewService(db, logger)
	checkoutEngine := checkout.NewEngine(db, cache, events, logger)
	orderSvc := orders.NewService(db, cache, events, logger)

	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		sd = nil
	} else {
		err = sd.Register(context.Background(), &discovery.ServiceInstance{
			Name: cfg.Server.Name,
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		})
		if err != nil {
			logger.Warn("Failed to register service in etcd", zap.Error(err))
		}
	}

	gw := gateway.NewGateway(cfg, logger, catalogSvc, cartSvc, checkoutEngine, orderSvc)
	gw.SetupRoutes()

	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	logger.Info("Server started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Fatal("Gateway error", zap.Error(err))
	}

	if sd != nil {
		sd.Close()
	}

	logger.Info("Server stopped")
}
