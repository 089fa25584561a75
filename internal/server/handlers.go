package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"serreclub/internal/club"

	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("body too large")

type API struct {
	Service   *club.Service
	Log       logrus.FieldLogger
	Prefix    string
	StaticDir string
	StoreKind string
}

func (a *API) logger() logrus.FieldLogger {
	if a.Log != nil {
		return a.Log
	}
	return logrus.StandardLogger()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, msg)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBodyBytes {
		return nil, errBodyTooLarge
	}
	return b, nil
}

// decodeBody fills v from the request body. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// bind decodes the body or answers 400 itself.
func (a *API) bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeBody(r, v); err != nil {
		writeText(w, http.StatusBadRequest, "JSON invalide")
		return false
	}
	return true
}

// fail maps a club error onto the HTTP contract.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *club.ValidationError
	var aerr *club.AuthError
	switch {
	case errors.As(err, &verr):
		writeText(w, http.StatusBadRequest, verr.Msg)
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Success: false, Error: aerr.Code})
	case errors.Is(err, club.ErrForbidden):
		writeText(w, http.StatusForbidden, "Non autorisé")
	case errors.Is(err, club.ErrNotFound):
		writeText(w, http.StatusNotFound, "Annonce introuvable")
	default:
		a.logger().WithError(err).WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Success: false, Error: "storage_error"})
	}
}

func ok(extra map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// Members and login
// ---------------------------------------------------------------------------

func (a *API) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := a.Service.ListMembers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *API) UpsertMember(w http.ResponseWriter, r *http.Request) {
	var req club.MemberInput
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.Service.UpsertMember(r.Context(), req); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

func (a *API) DeleteMember(w http.ResponseWriter, r *http.Request) {
	removed, err := a.Service.DeleteMember(r.Context(), r.PathValue("login"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{"removed": removed}))
}

func (a *API) ClearMembers(w http.ResponseWriter, r *http.Request) {
	if err := a.Service.ClearMembers(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !a.bind(w, r, &req) {
		return
	}
	user, err := a.Service.Authenticate(r.Context(), string(req.Username), string(req.Password))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, User: user})
}

func (a *API) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Service.ListHistory(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := a.Service.ClearHistory(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

// ---------------------------------------------------------------------------
// Population
// ---------------------------------------------------------------------------

func (a *API) ListPopulation(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Service.ListPopulation(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) SyncPopulation(w http.ResponseWriter, r *http.Request) {
	var req SyncPopulationRequest
	if !a.bind(w, r, &req) {
		return
	}
	n, err := a.Service.SyncPopulation(r.Context(), string(req.MemberUsername), req.Entries.Slice())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(map[string]any{"count": n}))
}

// ---------------------------------------------------------------------------
// Annonces
// ---------------------------------------------------------------------------

func (a *API) ListAnnonces(w http.ResponseWriter, r *http.Request) {
	ads, err := a.Service.ListAnnonces(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ads)
}

func (a *API) CreateAnnonce(w http.ResponseWriter, r *http.Request) {
	var req club.AnnonceInput
	if !a.bind(w, r, &req) {
		return
	}
	ad, err := a.Service.CreateAnnonce(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnonceResponse{Success: true, Annonce: ad})
}

func (a *API) TogglePrivate(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if !a.bind(w, r, &req) {
		return
	}
	ad, err := a.Service.TogglePrivate(r.Context(), r.PathValue("id"), string(req.Username))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnonceResponse{Success: true, Annonce: ad})
}

func (a *API) ToggleFavori(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if !a.bind(w, r, &req) {
		return
	}
	ad, err := a.Service.ToggleFavori(r.Context(), r.PathValue("id"), string(req.Username))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnnonceResponse{Success: true, Annonce: ad})
}

func (a *API) DeleteAnnonce(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.Service.DeleteAnnonce(r.Context(), r.PathValue("id"), string(req.Username), string(req.Role)); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

// ---------------------------------------------------------------------------
// Serre
// ---------------------------------------------------------------------------

func (a *API) GetSerre(w http.ResponseWriter, r *http.Request) {
	sr, err := a.Service.GetSerre(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

func (a *API) SaveNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.Service.SaveNotes(r.Context(), req.Notes); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

func (a *API) SaveBacs(w http.ResponseWriter, r *http.Request) {
	var req BacsRequest
	if !a.bind(w, r, &req) {
		return
	}
	if err := a.Service.SaveBacs(r.Context(), req.Bacs.Slice(), req.Assignments); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

func (a *API) SaveFeed(w http.ResponseWriter, r *http.Request) {
	var req FeedRequest
	if !a.bind(w, r, &req) {
		return
	}
	if _, err := a.Service.SaveFeed(r.Context(), req.Items.Slice(), req.MonthlyUseKg); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil))
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if p, isPinger := a.Service.Store.(pinger); isPinger {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			a.logger().WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "down", "store": a.StoreKind})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "store": a.StoreKind})
}
