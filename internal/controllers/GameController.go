package controllers

import (
	"context"
	"net/http"
	"unicode/utf8"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/providers"
	"cryptogram/internal/services"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

const maxRequestBodySize = 1 << 16 // 64 KB

type GameController struct {
	logger  providers.Logger
	session services.SessionServiceInterface
}

func NewGameController(logger providers.Logger, session services.SessionServiceInterface) *GameController {
	return &GameController{
		logger:  logger,
		session: session,
	}
}

type newGameRequest struct {
	Difficulty string `json:"difficulty"`
	Date       string `json:"date"`
	ID         string `json:"id"`
}

type letterRequest struct {
	Letter string `json:"letter"`
}

type countResponse struct {
	Count int `json:"count"`
}

func (gc *GameController) NewCustom(w http.ResponseWriter, r *http.Request) {
	var req newGameRequest
	if !gc.decodeOptional(w, r, &req) {
		return
	}
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.NewCustomGame(ctx, req.Difficulty)
	})
}

func (gc *GameController) NewDaily(w http.ResponseWriter, r *http.Request) {
	var req newGameRequest
	if !gc.decodeOptional(w, r, &req) {
		return
	}
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.NewDailyGame(ctx, req.Date)
	})
}

func (gc *GameController) Resume(w http.ResponseWriter, r *http.Request) {
	var req newGameRequest
	if !gc.decode(w, r, &req) {
		return
	}
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.ResumeGame(ctx, req.ID)
	})
}

func (gc *GameController) Select(w http.ResponseWriter, r *http.Request) {
	letter, ok := gc.decodeLetter(w, r)
	if !ok {
		return
	}
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.SelectLetter(ctx, letter)
	})
}

func (gc *GameController) Guess(w http.ResponseWriter, r *http.Request) {
	letter, ok := gc.decodeLetter(w, r)
	if !ok {
		return
	}
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.ApplyGuess(ctx, letter)
	})
}

func (gc *GameController) Hint(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.ApplyHint(ctx)
	})
}

func (gc *GameController) Infinite(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.EnableInfiniteMode(ctx)
	})
}

func (gc *GameController) Reset(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.Reset(ctx)
	})
}

func (gc *GameController) Finalize(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.FinalizeIfTerminal(ctx)
	})
}

func (gc *GameController) State(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(context.Context) (any, error) {
		return gc.session.CurrentState()
	})
}

// InProgress answers with the resumable puzzle for ?daily=, or 204.
func (gc *GameController) InProgress(w http.ResponseWriter, r *http.Request) {
	isDaily := cast.ToBool(r.URL.Query().Get("daily"))
	p, err := gc.session.CheckForInProgress(r.Context(), isDaily)
	if err != nil {
		gc.writeError(w, err)
		return
	}
	if p == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"puzzle_id":  p.ID,
		"is_daily":   p.IsDaily,
		"daily_date": p.DailyDate,
		"mistakes":   p.Mistakes,
		"display":    p.CurrentDisplay,
		"updated_at": p.LastUpdateTime,
	})
}

func (gc *GameController) Stats(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.Stats(ctx)
	})
}

func (gc *GameController) SyncStatus(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		return gc.session.SyncStatus(ctx)
	})
}

func (gc *GameController) SyncRetry(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		n, err := gc.session.RetrySync(ctx)
		return countResponse{Count: n}, err
	})
}

func (gc *GameController) Dedupe(w http.ResponseWriter, r *http.Request) {
	gc.respond(w, r, func(ctx context.Context) (any, error) {
		n, err := gc.session.CleanupDuplicates(ctx)
		return countResponse{Count: n}, err
	})
}

func (gc *GameController) respond(w http.ResponseWriter, r *http.Request, call func(ctx context.Context) (any, error)) {
	result, err := call(r.Context())
	if err != nil {
		gc.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (gc *GameController) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: string(apperr.ErrInvalidInput), Error: "malformed request body"})
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (gc *GameController) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return gc.decode(w, r, dst)
}

func (gc *GameController) decodeLetter(w http.ResponseWriter, r *http.Request) (rune, bool) {
	var req letterRequest
	if !gc.decode(w, r, &req) {
		return 0, false
	}
	if utf8.RuneCountInString(req.Letter) != 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: string(apperr.ErrInvalidInput), Error: "letter must be a single character"})
		return 0, false
	}
	letter, _ := utf8.DecodeRuneInString(req.Letter)
	return letter, true
}

func (gc *GameController) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		gc.logger.Errorf(providers.TypeHTTP, "Request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Code: string(apperr.CodeOf(err)), Error: err.Error()})
}

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.ErrInvalidInput:
		return http.StatusBadRequest
	case apperr.ErrInvalidState:
		return http.StatusConflict
	case apperr.ErrNotFound, apperr.ErrNoChallenge:
		return http.StatusNotFound
	case apperr.ErrAuthRequired:
		return http.StatusUnauthorized
	case apperr.ErrContentUnavailable:
		return http.StatusServiceUnavailable
	case apperr.ErrNetworkFailure, apperr.ErrServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}
