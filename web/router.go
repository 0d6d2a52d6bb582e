// Package web serves a local target for tracing experiments. Every endpoint
// exists to exercise a specific part of a request's lifecycle: redirect
// chains, chunked bodies, delays, echoes, and connection-level failures.
package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter builds the target server's router.
func NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/ok", handleOK)
	r.HandleFunc("/redirect/{n:[0-9]+}", handleRedirect)
	r.HandleFunc("/chunked/{n:[0-9]+}", handleChunked)
	r.HandleFunc("/delay/{ms:[0-9]+}", handleDelay)
	r.HandleFunc("/echo", handleEcho)
	r.HandleFunc("/fail", handleFail)

	return r
}

func handleOK(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

// handleRedirect answers with a chain of n redirects that ends at /ok.
func handleRedirect(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(mux.Vars(r)["n"])

	target := "/ok"
	if n > 1 {
		target = fmt.Sprintf("/redirect/%d", n-1)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleChunked streams n flushed chunks so clients observe them one by one.
func handleChunked(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(mux.Vars(r)["n"])

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported",
			http.StatusInternalServerError)
		return
	}

	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "chunk-%d\n", i)
		flusher.Flush()
		time.Sleep(time.Millisecond)
	}
}

func handleDelay(w http.ResponseWriter, r *http.Request) {
	ms, _ := strconv.Atoi(mux.Vars(r)["ms"])
	time.Sleep(time.Duration(ms) * time.Millisecond)
	fmt.Fprintln(w, "ok")
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	if _, err := io.Copy(w, r.Body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleFail hijacks the connection and closes it mid-response, so the
// client sees a transport-level failure rather than an HTTP status.
func handleFail(w http.ResponseWriter, r *http.Request) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking unsupported",
			http.StatusInternalServerError)
		return
	}

	conn, _, err := hijacker.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}
