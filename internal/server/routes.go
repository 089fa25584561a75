package server

import (
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Routes builds the full handler: API routes under Prefix, /healthz, and the
// static front-end when StaticDir exists.
func (a *API) Routes() http.Handler {
	p := a.Prefix
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+p+"/members", a.ListMembers)
	mux.HandleFunc("POST "+p+"/members", a.UpsertMember)
	mux.HandleFunc("DELETE "+p+"/members/{login}", a.DeleteMember)
	mux.HandleFunc("POST "+p+"/members/clear", a.ClearMembers)
	mux.HandleFunc("POST "+p+"/login", a.Login)
	mux.HandleFunc("GET "+p+"/history", a.ListHistory)
	mux.HandleFunc("POST "+p+"/history/clear", a.ClearHistory)

	mux.HandleFunc("GET "+p+"/population", a.ListPopulation)
	mux.HandleFunc("POST "+p+"/population/sync", a.SyncPopulation)

	mux.HandleFunc("GET "+p+"/annonces", a.ListAnnonces)
	mux.HandleFunc("POST "+p+"/annonces", a.CreateAnnonce)
	mux.HandleFunc("PATCH "+p+"/annonces/{id}/togglePrivate", a.TogglePrivate)
	mux.HandleFunc("PATCH "+p+"/annonces/{id}/toggleFavori", a.ToggleFavori)
	mux.HandleFunc("DELETE "+p+"/annonces/{id}", a.DeleteAnnonce)

	mux.HandleFunc("GET "+p+"/serre", a.GetSerre)
	mux.HandleFunc("POST "+p+"/serre/notes", a.SaveNotes)
	mux.HandleFunc("POST "+p+"/serre/bacs", a.SaveBacs)
	mux.HandleFunc("POST "+p+"/serre/feed", a.SaveFeed)

	mux.HandleFunc("GET /healthz", a.Health)

	if a.StaticDir != "" {
		if st, err := os.Stat(a.StaticDir); err == nil && st.IsDir() {
			mux.Handle("GET /", http.FileServer(http.Dir(a.StaticDir)))
		} else {
			a.logger().WithField("dir", a.StaticDir).Warn("static dir missing, front-end not served")
		}
	}

	return a.logRequests(cors(mux))
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger().WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request")
	})
}

// NewHTTPServer wraps h with the timeouts used in production.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
