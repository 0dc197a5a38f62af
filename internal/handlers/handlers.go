package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/holder"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/ledger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

func APIMux(s *Server, tracer trace.Tracer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /holders", middlewareWeb(tracer, s.CreateHolder))
	mux.Handle("DELETE /holders/{id}", middlewareWeb(tracer, s.DeleteHolder))
	mux.Handle("POST /accounts", middlewareWeb(tracer, s.CreateAccount))
	mux.Handle("GET /accounts/{value}", middlewareWeb(tracer, s.FindAccount))
	mux.Handle("PATCH /accounts/{accountNumber}/status", middlewareWeb(tracer, s.UpdateAccountStatus))
	mux.Handle("POST /accounts/transactions/deposit", middlewareWeb(tracer, s.Deposit))
	mux.Handle("POST /accounts/transactions/withdraw", middlewareWeb(tracer, s.Withdraw))
	mux.Handle("GET /accounts/transactions/{accountNumber}", middlewareWeb(tracer, s.Transactions))

	return mux
}

type Server struct {
	log      *slog.Logger
	holders  *holder.Core
	accounts *account.Core
	ledger   *ledger.Core
}

func NewServer(log *slog.Logger, holders *holder.Core, accounts *account.Core, l *ledger.Core) *Server {
	return &Server{
		log:      log,
		holders:  holders,
		accounts: accounts,
		ledger:   l,
	}
}

func (s *Server) CreateHolder(w http.ResponseWriter, r *http.Request) {
	var req CreateHolderReq
	if !s.decode(w, r, &req) {
		return
	}

	h, err := s.holders.Create(r.Context(), holder.NewHolder{
		FullName: req.FullName,
		CPF:      req.CPF,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, CreateHolderResp{ID: h.ID})
}

func (s *Server) DeleteHolder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid holder id", http.StatusBadRequest)
		return
	}

	if err := s.holders.Delete(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountReq
	if !s.decode(w, r, &req) {
		return
	}

	a, err := s.accounts.Create(r.Context(), req.CPF)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, CreateAccountResp{
		ID:            a.ID,
		AccountNumber: a.Number,
		Agency:        a.Agency,
	})
}

func (s *Server) FindAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.accounts.QueryByCPFOrNumber(r.Context(), r.PathValue("value"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, toAccountResp(a))
}

func (s *Server) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if !s.decode(w, r, &req) {
		return
	}

	status, err := account.ParseStatus(req.Status)
	if err != nil {
		s.respondError(w, err)
		return
	}

	if err := s.accounts.UpdateStatus(r.Context(), r.PathValue("accountNumber"), status); err != nil {
		s.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	var req TransactionReq
	if !s.decode(w, r, &req) {
		return
	}

	t, err := s.ledger.Deposit(r.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, toTransactionResp(t))
}

func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req TransactionReq
	if !s.decode(w, r, &req) {
		return
	}

	t, err := s.ledger.Withdraw(r.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, toTransactionResp(t))
}

func (s *Server) Transactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	h, err := s.ledger.History(r.Context(), r.PathValue("accountNumber"), filter)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, toHistoryResp(h))
}

var errBadDate = errors.New("dates must be in YYYY-MM-DD format")

func parseFilter(r *http.Request) (ledger.Filter, error) {
	var f ledger.Filter
	q := r.URL.Query()

	if v := q.Get("startDate"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return ledger.Filter{}, errBadDate
		}
		f.StartDate = d
	}
	if v := q.Get("endDate"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return ledger.Filter{}, errBadDate
		}
		f.EndDate = d
	}
	if v := q.Get("type"); v != "" {
		t, err := ledger.ParseType(v)
		if err != nil {
			return ledger.Filter{}, err
		}
		f.Type = t
	}

	return f, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if r.Header.Get("Content-Type") != "application/json" {
		s.log.Error("request must be a json")
		http.Error(w, "request must be a json", http.StatusBadRequest)
		return false
	}

	err := json.NewDecoder(r.Body).Decode(req)
	r.Body.Close()
	if err != nil {
		s.log.Error("decoding json", "ERROR", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}

	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, resp any) {
	bs, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to encode response", "ERROR", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(bs)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", "ERROR", err)

	switch {
	case errors.Is(err, holder.ErrNotFound),
		errors.Is(err, account.ErrNotFound),
		errors.Is(err, account.ErrHolderNotFound),
		errors.Is(err, ledger.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, holder.ErrCPFRegistered),
		errors.Is(err, holder.ErrHasOpenAccount),
		errors.Is(err, account.ErrAlreadyExists),
		errors.Is(err, account.ErrClosedAccountBlocked),
		errors.Is(err, ledger.ErrAccountNotActive):
		http.Error(w, err.Error(), http.StatusConflict)

	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrDailyLimitExceeded):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)

	case errors.Is(err, holder.ErrInvalidCPF),
		errors.Is(err, account.ErrInvalidStatus),
		errors.Is(err, ledger.ErrInvalidType),
		errors.Is(err, errBadDate):
		http.Error(w, err.Error(), http.StatusBadRequest)

	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
