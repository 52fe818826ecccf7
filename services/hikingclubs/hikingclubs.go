// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/relabs-tech/hikingclubs/core/backend"
	"github.com/relabs-tech/hikingclubs/core/csql"
	"github.com/relabs-tech/hikingclubs/core/logger"
	"github.com/relabs-tech/hikingclubs/core/notify"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
type Service struct {
	Postgres         string        `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string        `env:"POSTGRES_PASSWORD" description:"password to access the Postgres DB"`
	Port             int           `env:"PORT,default=65535" description:"the port the service listens on"`
	LogLevel         string        `env:"LOG_LEVEL,default=info" description:"the log level: panic, fatal, error, warning, info, debug or trace"`
	MaxConnections   int           `env:"DB_MAX_CONNECTIONS,default=3" description:"maximum number of database sessions"`
	AcquireTimeout   time.Duration `env:"DB_ACQUIRE_TIMEOUT,default=5s" description:"maximum wait for a free database session"`
	CascadeDeletes   bool          `env:"CASCADE_DELETES,default=false" description:"keep club member counters exact on deletes"`
	KafkaBrokers     string        `env:"KAFKA_BROKERS" description:"comma separated kafka brokers for change events"`
	KafkaTopic       string        `env:"KAFKA_TOPIC,default=hikingclubs.changes" description:"kafka topic for change events"`
	StaticDir        string        `env:"STATIC_DIR,default=./public" description:"directory of the browser frontend"`
}

// time the database may take to come up
const connectTimeout = 60 * time.Second

// grace period for open requests on shutdown
const shutdownGracePeriod = 10 * time.Second

func loadService() (*Service, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, err
		}
	}
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		return nil, err
	}
	return service, nil
}

func main() {
	service, err := loadService()
	if err != nil {
		panic(err)
	}
	logger.InitLogger(logger.ParseLevel(service.LogLevel))
	rlog := logger.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := csql.OpenWithRetry(ctx, service.Postgres, service.PostgresPassword, csql.Options{
		MaxConnections: service.MaxConnections,
		AcquireTimeout: service.AcquireTimeout,
	}, connectTimeout)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot connect to database")
	}

	var notifier notify.Notifier = notify.Noop{}
	if service.KafkaBrokers != "" {
		notifier = notify.NewKafka(service.KafkaBrokers, service.KafkaTopic)
		rlog.Infoln("publishing change events to kafka topic", service.KafkaTopic)
	}

	router := mux.NewRouter()
	b := backend.MustNew(&backend.Builder{
		DB:             db,
		Router:         router,
		Notifier:       notifier,
		CascadeDeletes: service.CascadeDeletes,
		StaticDir:      service.StaticDir,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", service.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		rlog.Infof("listen on port :%d", service.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rlog.WithError(err).Errorln("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	rlog.Infoln("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	var result *multierror.Error
	if err := server.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := b.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		rlog.WithError(err).Errorln("unclean shutdown")
		os.Exit(1)
	}
}
