package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	_ "time/tzdata"

	"hermannm.dev/datehistogram/api"
	"hermannm.dev/datehistogram/config"
	"hermannm.dev/datehistogram/source"
	"hermannm.dev/datehistogram/source/clickhouse"
	"hermannm.dev/datehistogram/source/elasticsearch"
	"hermannm.dev/devlog"
	"hermannm.dev/devlog/log"
)

func main() {
	logHandler := devlog.NewHandler(os.Stdout, &devlog.Options{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(logHandler))

	log.Info("loading environment variables...")
	conf, err := config.ReadFromEnv()
	if err != nil {
		log.ErrorCause(err, "failed to read config from env")
		os.Exit(1)
	}

	documentSource, err := initializeDocumentSource(conf)
	if err != nil {
		log.ErrorCause(err, "failed to initialize document source")
		os.Exit(1)
	}

	histogramAPI := api.NewHistogramAPI(documentSource, http.NewServeMux(), conf.API)

	log.Info(fmt.Sprintf("listening on port %s...", conf.API.Port))
	if err := histogramAPI.ListenAndServe(); err != nil {
		log.ErrorCause(err, "server stopped")
		os.Exit(1)
	}
}

func initializeDocumentSource(conf config.Config) (source.DocumentSource, error) {
	switch conf.Source {
	case config.SourceClickHouse:
		log.Info("connecting to ClickHouse...")
		clickHouseSource, err := clickhouse.NewClickHouseSource(conf)
		if err != nil {
			return nil, err
		}
		return clickHouseSource, nil
	case config.SourceElasticsearch:
		log.Info("connecting to Elasticsearch...")
		elasticSource, err := elasticsearch.NewElasticsearchSource(conf)
		if err != nil {
			return nil, err
		}
		return elasticSource, nil
	default:
		return nil, fmt.Errorf("unsupported document source '%s'", conf.Source)
	}
}
