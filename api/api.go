package api

import (
	"fmt"
	"net/http"

	"hermannm.dev/datehistogram/config"
	"hermannm.dev/datehistogram/source"
)

type HistogramAPI struct {
	source source.DocumentSource
	router *http.ServeMux
	config config.API
}

func NewHistogramAPI(
	documentSource source.DocumentSource,
	router *http.ServeMux,
	config config.API,
) HistogramAPI {
	api := HistogramAPI{source: documentSource, router: router, config: config}

	api.router.HandleFunc("/histogram", api.RunHistogram)

	return api
}

func (api HistogramAPI) ListenAndServe() error {
	return http.ListenAndServe(fmt.Sprintf(":%s", api.config.Port), api.router)
}
