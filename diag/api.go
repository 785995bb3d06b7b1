package diag

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// API is the HTTP server answering queries about recorded outcomes.
// Grounded on dropbox-llama/api.go's API/StatusHandler/InfluxHandler
// pair, with InfluxHandler's JSON-of-cache shape repurposed for
// WarningsHandler.
type API struct {
	recorder *Recorder
	server   *http.Server
	handler  *http.ServeMux
}

// NewAPI returns an initialized API serving r's recorded outcomes on addr.
func NewAPI(r *Recorder, addr string) *API {
	handler := http.NewServeMux()
	server := &http.Server{Addr: addr, Handler: handler}
	return &API{recorder: r, server: server, handler: handler}
}

// WarningsHandler serves the most recent snapshot of recorded outcomes as
// JSON.
func (a *API) WarningsHandler(rw http.ResponseWriter, _ *http.Request) {
	outcomes := a.recorder.Snapshot()
	asJSON, err := json.Marshal(outcomes)
	if err != nil {
		log.Println("diag: marshaling outcomes:", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Write(asJSON)
}

// StatusHandler acts as a bare healthcheck and simply returns 200 OK.
func (a *API) StatusHandler(rw http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(rw, "ok")
}

// Run starts serving in a new goroutine. Non-blocking.
func (a *API) Run() {
	a.setupHandlers()
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Println("diag: API server stopped:", err)
		}
	}()
}

// Stop closes the server, causing Run's goroutine to exit.
func (a *API) Stop() error {
	return a.server.Close()
}

func (a *API) setupHandlers() {
	a.handler.HandleFunc("/status", a.StatusHandler)
	a.handler.HandleFunc("/warnings", a.WarningsHandler)
}
