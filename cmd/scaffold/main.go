package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/metanet-platform/scaffold-app/internal/config"
	"github.com/metanet-platform/scaffold-app/internal/domain"
	"github.com/metanet-platform/scaffold-app/internal/infra/database"
	"github.com/metanet-platform/scaffold-app/internal/infra/repository"
	"github.com/metanet-platform/scaffold-app/internal/present/rest"
	"github.com/metanet-platform/scaffold-app/internal/present/rest/middleware"
	"github.com/metanet-platform/scaffold-app/internal/service"
	"github.com/metanet-platform/scaffold-app/internal/usecase"
)

func main() {
	configPath := os.Getenv("SCAFFOLD_CONFIG")
	if configPath == "" {
		configPath = "/etc/scaffold/config.yaml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint, conf.NodeInfo.FQDN)
		if err != nil {
			slog.Error("failed to setup trace provider", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	err = database.MigratePostgres(db)
	if err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	userRepo := repository.NewUserRepository(db, mc)
	roleRepo := repository.NewRoleRepository(db)
	adminFlag := repository.NewAdminFlagRepository(rdb)

	signal := service.NewSignalService(rdb)
	verifier := service.NewVerifierService()
	session := service.NewSessionService(conf)

	authUsecase := usecase.NewAuthUsecase(
		userRepo,
		signal,
		domain.RegistrationMode(conf.NodeInfo.Registration),
		domain.LookupKey(conf.NodeInfo.LookupKey),
	)
	roleUsecase := usecase.NewRoleUsecase(userRepo, roleRepo, adminFlag, signal)

	handler := rest.NewHandler(conf, authUsecase, roleUsecase, verifier, session, signal)
	authMiddleware := middleware.NewAuthMiddleware(session, authUsecase)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(conf.NodeInfo.FQDN))
	}
	e.Use(authMiddleware.IdentifyRequester)

	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

func setupTraceProvider(endpoint string, serviceName string) (func(), error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	resource := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	cleanup := func() {
		_ = tracerProvider.Shutdown(context.Background())
	}
	return cleanup, nil
}
