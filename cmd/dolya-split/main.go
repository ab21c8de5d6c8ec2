// Dolya Split Service — группы и доли расходов.
//
// Из messaging-подсистемы сервису нужны карточки участников: он
// запрашивает их у user-сервиса синхронным RPC через RabbitMQ и
// отдаёт через тонкое HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dolya-app/dolya/internal/api"
	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/mq"
	"github.com/dolya-app/dolya/internal/split"
	"github.com/dolya-app/dolya/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("dolya-split")
	logger.Info("starting dolya-split")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rabbitCfg := config.LoadRabbit()

	// Топология объявляется идемпотентно из обоих сервисов: кто первым
	// поднялся, тот и создал.
	setupConn := mq.NewConn(rabbitCfg, logger)
	if err := setupConn.Connect(); err != nil {
		logger.Warn("RabbitMQ not available, rpc calls will fail until it is up", "error", err)
	} else {
		if err := mq.SetupTopology(setupConn, rabbitCfg); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		setupConn.Close()
	}

	members := split.NewService(rabbitCfg, logger)

	// HTTP mux: API + /healthz + /metrics
	mux := http.NewServeMux()
	api.NewHandler(members, logger).RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("SPLIT_SERVICE_PORT"); v != "" {
		port = ":" + v
	}

	server := &http.Server{Addr: port, Handler: mux}

	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info("dolya-split stopped")
}
