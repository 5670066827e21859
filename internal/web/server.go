package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"gnss-tracker/internal/task"
)

// Controller is the part of the acquisition task the API exposes.
type Controller interface {
	State() string
	Snapshot() task.AcquisitionContext
	Trigger() bool
}

func Handler(status *Status, ctl Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC(), ctl.State(), ctl.Snapshot())
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})

	// Requests one acquisition; a trigger already pending absorbs it.
	mux.HandleFunc("/api/trigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		queued := ctl.Trigger()
		if queued {
			status.MarkTrigger()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]bool{"queued": queued})
	})

	return mux
}

// Serve listens on listenAddr and serves the API until ctx is done. Listen
// errors are returned before any request is served.
func Serve(ctx context.Context, listenAddr string, status *Status, ctl Controller, log logrus.FieldLogger) error {
	if status == nil {
		status = NewStatus()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrap(err, "status api listen")
	}
	log = log.WithField("listen", ln.Addr().String())

	srv := &http.Server{
		Handler:           Handler(status, ctl),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Info("status api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("status api shutdown")
		}
		log.Info("status api stopped")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "status api serve")
	}
}
