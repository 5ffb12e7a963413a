package web

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/red4tools/meshexport/export"
	"github.com/red4tools/meshexport/status"
	"github.com/red4tools/meshexport/vfs"
)

var (
	ServerDirectory vfs.Directory
	ServerExporter  *export.Exporter
)

func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/json/list", HandlerAjaxList).Methods("GET")
	r.HandleFunc("/export/{file}", HandlerExportFile).Methods("GET")
	r.HandleFunc("/batch", HandlerBatch).Methods("POST")
	r.Handle("/ws/status", status.Default)
	return r
}

func StartServer(addr string, d vfs.Directory, e *export.Exporter) error {
	ServerDirectory = d
	ServerExporter = e

	h := handlers.RecoveryHandler()(NewRouter())
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
