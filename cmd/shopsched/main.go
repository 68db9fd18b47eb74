package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mesworks/shopsched/internal/engine"
	"github.com/mesworks/shopsched/internal/services/auth"
	"github.com/mesworks/shopsched/internal/services/identity"
	"github.com/mesworks/shopsched/internal/services/line"
	"github.com/mesworks/shopsched/internal/services/operation"
	"github.com/mesworks/shopsched/internal/services/operationtype"
	"github.com/mesworks/shopsched/internal/services/product"
	"github.com/mesworks/shopsched/internal/services/productionorder"
	"github.com/mesworks/shopsched/internal/services/surplus"
	"github.com/mesworks/shopsched/internal/services/workcenter"
	"github.com/mesworks/shopsched/pkg/config"
	"github.com/mesworks/shopsched/pkg/database"
	"github.com/mesworks/shopsched/pkg/keyring"
	"github.com/mesworks/shopsched/pkg/logger"
)

var version = "dev"

func main() {
	var host string
	var port int
	flag.StringVar(&host, "host", "", "bind address (overrides config)")
	flag.IntVar(&port, "port", 0, "listen port (overrides config)")
	flag.Parse()

	log := logger.New("shopsched", version)

	cfg := config.New()
	cfg.LoadFromEnv()
	if host != "" {
		cfg.Update(map[string]string{"server.host": host})
	}
	if port != 0 {
		cfg.Update(map[string]string{"server.port": fmt.Sprintf("%d", port)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.Initialize(ctx, database.FromGlobalConfig(cfg)); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := database.GetInstance()
	defer db.Close()

	km := keyring.NewKeyringManager(keyring.GetDefaultKeyringPath(), keyring.GetMasterPasswordFromEnv())
	secret, err := auth.NewSecretManager(km).GetOrCreateSecret()
	if err != nil {
		log.Fatalf("Failed to load signing secret: %v", err)
	}

	identitySvc := identity.NewService(db, log)
	authSvc := auth.NewService(identitySvc, secret, log)

	services := engine.Services{
		Lines:            line.NewService(db, log),
		WorkCenters:      workcenter.NewService(db, log),
		Products:         product.NewService(db, log),
		Operations:       operation.NewService(db, log),
		OperationTypes:   operationtype.NewService(db, log),
		ProductionOrders: productionorder.NewService(db, log),
		Surplus:          surplus.NewService(db, log),
		Auth:             authSvc,
	}

	addr := fmt.Sprintf("%s:%s",
		cfg.GetOrDefault("server.host", "0.0.0.0"),
		cfg.GetOrDefault("server.port", "8080"))

	server := &http.Server{
		Addr:         addr,
		Handler:      engine.NewEngine(services, log).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
}
