package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"payment-ledger/pkg/ledger"
	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/validation"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Health probe timeout.
const healthTimeout = 2 * time.Second

type envelope map[string]interface{}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, database, code := "healthy", "connected", http.StatusOK
	if s.config.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := s.config.Database(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			status, database, code = "unhealthy", "disconnected", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, envelope{
		"status":   status,
		"service":  s.config.Service,
		"database": database,
		"version":  s.config.Version,
	})
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req validation.PaymentRequest
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.svc.CreatePayment(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "payment": newPaymentView(p)})
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.PaymentFilter{
		MerchantID: q.Get("merchant_id"),
		CustomerID: q.Get("customer_id"),
		Status:     payment.Status(q.Get("status")),
	}

	var problems []string
	if f.Status != "" && !f.Status.Valid() {
		problems = append(problems, fmt.Sprintf("status %q is not a payment status", f.Status))
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s must be an integer", p.name))
			continue
		}
		*p.dst = n
	}
	if len(problems) > 0 {
		writeErrors(w, http.StatusBadRequest, problems)
		return
	}

	page, err := s.svc.ListPayments(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	views := make([]paymentView, 0, len(page.Payments))
	for _, p := range page.Payments {
		views = append(views, newPaymentView(p))
	}
	writeJSON(w, http.StatusOK, envelope{
		"success":  true,
		"payments": views,
		"total":    page.Total,
		"offset":   page.Offset,
		"limit":    page.Limit,
	})
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "payment": newSummaryView(sum)})
}

func (s *Server) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.ProcessPayment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		var current interface{}
		if p.ID != "" {
			current = newPaymentView(p)
		}
		s.writeError(w, r, err, envelope{"payment": current})
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "payment": newPaymentView(p)})
}

func (s *Server) handleCreateRefund(w http.ResponseWriter, r *http.Request) {
	var req validation.RefundRequest
	if !s.decode(w, r, &req) {
		return
	}

	ref, err := s.svc.CreateRefund(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		var extra envelope
		if ref.ID != "" {
			extra = envelope{"refund": newRefundView(ref)}
		}
		s.writeError(w, r, err, extra)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"success": true, "refund": newRefundView(ref)})
}

func (s *Server) handleListRefunds(w http.ResponseWriter, r *http.Request) {
	refunds, err := s.svc.Refunds(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "refunds": newRefundViews(refunds)})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.svc.Transactions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "transactions": newTransactionViews(txns)})
}

func (s *Server) handleGetRefund(w http.ResponseWriter, r *http.Request) {
	ref, err := s.svc.GetRefund(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "refund": newRefundView(ref)})
}

// handleCompleteRefund finishes a refund left pending by a failed write.
func (s *Server) handleCompleteRefund(w http.ResponseWriter, r *http.Request) {
	ref, err := s.svc.CompleteRefund(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		var extra envelope
		if ref.ID != "" {
			extra = envelope{"refund": newRefundView(ref)}
		}
		s.writeError(w, r, err, extra)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "refund": newRefundView(ref)})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeErrors(w, http.StatusNotFound, []string{"resource not found"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrors(w, http.StatusMethodNotAllowed, []string{"method not allowed"})
}

// decode reads a JSON body into dst. On failure it writes the response and
// returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			writeErrors(w, http.StatusBadRequest, []string{"content type must be application/json"})
			return false
		}
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeErrors(w, http.StatusRequestEntityTooLarge,
				[]string{fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
		case errors.Is(err, io.EOF):
			writeErrors(w, http.StatusBadRequest, []string{"request body is empty"})
		default:
			writeErrors(w, http.StatusBadRequest, []string{"invalid JSON: " + err.Error()})
		}
		return false
	}
	return true
}

// statusFor maps the ledger error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, payment.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, payment.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, payment.ErrInvalidTransition),
		errors.Is(err, payment.ErrPaymentNotSettled),
		errors.Is(err, payment.ErrRefundExceedsBalance):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, extra envelope) {
	code := statusFor(err)

	body := envelope{"success": false}
	var messages []string
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		messages = verr.Messages()
		body["fields"] = verr.Fields
	case code == http.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		messages = []string{"internal error"}
	default:
		messages = []string{err.Error()}
	}

	body["errors"] = messages
	for k, v := range extra {
		if v != nil {
			body[k] = v
		}
	}
	writeJSON(w, code, body)
}

func writeErrors(w http.ResponseWriter, status int, messages []string) {
	writeJSON(w, status, envelope{"success": false, "errors": messages})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
