// Dolya User Service — владеет записями пользователей.
//
// Сервис:
//   - Отвечает на батчевые и одиночные lookup-запросы из RabbitMQ
//   - Отправляет OTP-коды через OTP exchange
//   - Вычищает протухшие неподтверждённые изменения профиля
//
// Каждый consumer работает в собственной горутине со своим соединением.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dolya-app/dolya/internal/api"
	"github.com/dolya-app/dolya/internal/cache"
	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/janitor"
	"github.com/dolya-app/dolya/internal/lookup"
	"github.com/dolya-app/dolya/internal/mq"
	"github.com/dolya-app/dolya/internal/otp"
	"github.com/dolya-app/dolya/internal/repo"
	"github.com/dolya-app/dolya/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger("dolya-user")
	logger.Info("starting dolya-user")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	userRepo := repo.NewUserRepo(pool)
	pendingRepo := repo.NewPendingUpdateRepo(pool)

	// Redis — хранилище OTP-кодов
	codes, err := cache.New(ctx, config.LoadRedis(), logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer codes.Close()
	logger.Info("redis connected")

	rabbitCfg := config.LoadRabbit()

	// Топология: сбой не фатален — сервис продолжает без messaging,
	// consumers дождутся брокера сами.
	setupConn := mq.NewConn(rabbitCfg, logger)
	if err := setupConn.Connect(); err != nil {
		logger.Warn("RabbitMQ not available, consumers will keep retrying", "error", err)
	} else {
		if err := mq.SetupTopology(setupConn, rabbitCfg); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		setupConn.Close()
	}

	// Lookup consumers: по воркеру на вид запроса
	batchConsumer := lookup.NewBatchConsumer(rabbitCfg, userRepo, logger)
	singleConsumer := lookup.NewSingleConsumer(rabbitCfg, userRepo, logger)

	batchConsumer.Start(ctx)
	singleConsumer.Start(ctx)

	// Janitor протухших pending updates
	j := janitor.New(pendingRepo, logger, os.Getenv("JANITOR_SCHEDULE"))
	if err := j.Start(); err != nil {
		logger.Error("failed to start janitor", "error", err)
		os.Exit(1)
	}

	otpService := otp.NewService(codes, rabbitCfg, logger)

	// HTTP mux: /healthz + /metrics + внутренний OTP endpoint
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /internal/v1/otp/send", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID     string `json:"user_id"`
			Identifier string `json:"identifier"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Identifier == "" {
			api.BadRequest(w, "user_id and identifier are required")
			return
		}

		code := otpService.Create(r.Context(), req.UserID)
		if err := otpService.Send(r.Context(), req.Identifier, code); err != nil {
			// Best effort: код создан, доставка не удалась — клиент
			// может запросить повтор.
			logger.Error("failed to send OTP", "user_id", req.UserID, "error", err)
		}
		api.Success(w, map[string]any{"sent": true})
	})

	port := ":8081"
	if v := os.Getenv("USER_SERVICE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	batchConsumer.Stop()
	singleConsumer.Stop()
	j.Stop()
	logger.Info("dolya-user stopped")
}
