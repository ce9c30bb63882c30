package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"colorflow-server/internal/payments"
)

// createPaymentHandler records a new payment in the ledger. In production
// the caller is resolved against the Pi platform; in sandbox mode the
// payment is created locally and self-completes after a short delay.
func (s *Server) createPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return
	}

	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_amount", "Amount must be positive")
		return
	}
	if req.AccessToken == "" {
		respondError(w, http.StatusBadRequest, "missing_access_token", "accessToken is required")
		return
	}
	if req.Metadata.Type == "" {
		respondError(w, http.StatusBadRequest, "missing_metadata", "metadata.type is required")
		return
	}

	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_metadata", "metadata could not be encoded")
		return
	}

	now := time.Now()
	payment := &payments.Payment{
		Amount:    req.Amount,
		Memo:      req.Memo,
		Metadata:  string(metadata),
		Status:    payments.StatusPending,
		ToAddress: s.walletAddress,
		Sandbox:   s.sandbox,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.sandbox {
		// No platform round trip in sandbox. The access token doubles as
		// the player id so rewards land on the right profile.
		payment.ID = "sandbox-" + uuid.New().String()
		payment.UID = req.AccessToken
	} else {
		if !s.piClient.Configured() {
			respondError(w, http.StatusInternalServerError, "not_configured", "Pi API key is not configured")
			return
		}

		user, err := s.piClient.Me(r.Context(), req.AccessToken)
		if err != nil {
			log.Printf("Pi identity lookup failed: %v", err)
			respondError(w, http.StatusInternalServerError, "pi_auth_failed", "Could not verify Pi access token: "+err.Error())
			return
		}

		payment.ID = req.PaymentID
		if payment.ID == "" {
			payment.ID = uuid.New().String()
		}
		payment.UID = user.UID
	}

	if err := s.persistenceManager.SavePayment(payment); err != nil {
		log.Printf("Failed to record payment: %v", err)
		respondError(w, http.StatusInternalServerError, "ledger_error", "Could not record payment")
		return
	}

	log.Printf("Payment %s created for %s (%.2f π, sandbox=%t)", payment.ID, payment.UID, payment.Amount, payment.Sandbox)

	if s.sandbox {
		paymentID := payment.ID
		time.AfterFunc(s.sandboxDelay, func() {
			txid := "sandbox-tx-" + paymentID
			if _, _, err := s.settlePayment(paymentID, txid); err != nil {
				log.Printf("Sandbox self-completion failed for %s: %v", paymentID, err)
			}
		})
	}

	respondJSON(w, http.StatusOK, PaymentResponse{
		Success:         true,
		Payment:         payment,
		RealTransaction: !s.sandbox,
		Timestamp:       now.Format(time.RFC3339),
	})
}

func (s *Server) approvePaymentHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req ApprovePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return
	}
	if req.PaymentID == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_id", "paymentId is required")
		return
	}

	ledgerEntry, err := s.persistenceManager.LoadPayment(req.PaymentID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown_payment", err.Error())
		return
	}

	if !ledgerEntry.Sandbox {
		if _, err := s.piClient.Approve(r.Context(), req.PaymentID); err != nil {
			log.Printf("Pi approve failed for %s: %v", req.PaymentID, err)
			respondError(w, http.StatusInternalServerError, "pi_approve_failed", "Pi platform rejected the approval: "+err.Error())
			return
		}
	}

	payment, _, err := s.persistenceManager.TransitionPayment(req.PaymentID, payments.StatusApproved, "")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_transition", err.Error())
		return
	}

	log.Printf("Payment %s approved", payment.ID)

	respondJSON(w, http.StatusOK, PaymentResponse{
		Success:         true,
		Payment:         payment,
		Message:         "Payment approved",
		RealTransaction: !payment.Sandbox,
		Timestamp:       time.Now().Format(time.RFC3339),
	})
}

func (s *Server) completePaymentHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req CompletePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return
	}
	if req.PaymentID == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_id", "paymentId is required")
		return
	}
	if req.TxID == "" {
		respondError(w, http.StatusBadRequest, "missing_txid", "txid is required")
		return
	}

	ledgerEntry, err := s.persistenceManager.LoadPayment(req.PaymentID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown_payment", err.Error())
		return
	}

	if !ledgerEntry.Sandbox {
		if _, err := s.piClient.Complete(r.Context(), req.PaymentID, req.TxID); err != nil {
			log.Printf("Pi complete failed for %s: %v", req.PaymentID, err)
			respondError(w, http.StatusInternalServerError, "pi_complete_failed", "Pi platform rejected the completion: "+err.Error())
			return
		}
	}

	payment, _, err := s.settlePayment(req.PaymentID, req.TxID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_transition", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, PaymentResponse{
		Success:         true,
		Payment:         payment,
		Message:         "Payment completed",
		RealTransaction: !payment.Sandbox,
		Timestamp:       time.Now().Format(time.RFC3339),
	})
}

// settlePayment moves a payment to completed and delivers the purchase.
// The dispatcher runs only when the status actually changed, so repeated
// completions never double-deliver. Sandbox and real completions share
// this path.
func (s *Server) settlePayment(paymentID, txid string) (*payments.Payment, bool, error) {
	payment, changed, err := s.persistenceManager.TransitionPayment(paymentID, payments.StatusCompleted, txid)
	if err != nil {
		return nil, false, err
	}

	if !changed {
		log.Printf("Payment %s already completed, skipping delivery", paymentID)
		return payment, false, nil
	}

	meta, err := payments.ParseMetadata([]byte(payment.Metadata))
	if err != nil {
		log.Printf("Payment %s completed but metadata unreadable: %v", paymentID, err)
		return payment, true, nil
	}

	if err := s.dispatcher.Deliver(payment.UID, meta); err != nil {
		log.Printf("Failed to deliver purchase for payment %s: %v", paymentID, err)
	}

	return payment, true, nil
}

func (s *Server) piConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use GET")
		return
	}

	hasAPIKey := s.piClient.Configured()

	apiKeyValid := false
	if hasAPIKey {
		if err := s.piClient.ValidateKey(r.Context()); err != nil {
			log.Printf("Pi API key validation failed: %v", err)
		} else {
			apiKeyValid = true
		}
	}

	environment := s.environment
	if s.sandbox {
		environment = "sandbox"
	}

	respondJSON(w, http.StatusOK, PiConfigResponse{
		Success:          true,
		HasAPIKey:        hasAPIKey,
		HasWalletAddress: s.walletAddress != "",
		APIKeyValid:      apiKeyValid,
		WalletAddress:    s.walletAddress,
		Environment:      environment,
		Timestamp:        time.Now().Format(time.RFC3339),
	})
}

// webhookHandler ingests payment status callbacks. Delivery is
// at-least-once, so everything in here must tolerate duplicates.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "Could not read request body")
		return
	}

	if s.webhookSecret != "" {
		signature := r.Header.Get("X-Webhook-Signature")
		if !verifySignature(body, signature, s.webhookSecret) {
			respondError(w, http.StatusUnauthorized, "invalid_signature", "Webhook signature verification failed")
			return
		}
	}

	var req WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "Request body must be valid JSON")
		return
	}

	if req.PaymentID == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_id", "paymentId is required")
		return
	}

	// Reject anything aimed at a wallet we don't own, whatever the status
	if s.walletAddress == "" {
		respondError(w, http.StatusInternalServerError, "not_configured", "PI_WALLET_ADDRESS is not configured")
		return
	}
	if req.ToAddress != s.walletAddress {
		log.Printf("Webhook for %s rejected: to_address %q does not match wallet", req.PaymentID, req.ToAddress)
		respondError(w, http.StatusBadRequest, "wallet_mismatch", "to_address does not match the configured wallet")
		return
	}

	if err := s.ensureLedgerEntry(&req); err != nil {
		log.Printf("Failed to record webhook payment %s: %v", req.PaymentID, err)
		respondError(w, http.StatusInternalServerError, "ledger_error", "Could not record payment")
		return
	}

	var target payments.Status
	switch req.Status {
	case "approved":
		target = payments.StatusApproved
	case "completed":
		target = payments.StatusCompleted
	case "cancelled":
		target = payments.StatusCancelled
	case "failed":
		target = payments.StatusFailed
	default:
		respondError(w, http.StatusBadRequest, "unknown_status", "Unrecognized payment status: "+req.Status)
		return
	}

	var message string
	if target == payments.StatusCompleted {
		_, changed, err := s.settlePayment(req.PaymentID, req.TxID)
		switch {
		case err != nil:
			// A transition error here means a regression attempt on a
			// terminal record. Acknowledge so the sender stops retrying.
			log.Printf("Webhook completion ignored for %s: %v", req.PaymentID, err)
			message = "ignored"
		case changed:
			message = "completed"
		default:
			message = "ignored"
		}
	} else {
		_, changed, err := s.persistenceManager.TransitionPayment(req.PaymentID, target, req.TxID)
		switch {
		case err != nil:
			log.Printf("Webhook transition ignored for %s: %v", req.PaymentID, err)
			message = "ignored"
		case changed:
			message = string(target)
		default:
			message = "ignored"
		}
	}

	respondJSON(w, http.StatusOK, WebhookResponse{
		Success:   true,
		Message:   message,
		PaymentID: req.PaymentID,
		Status:    req.Status,
	})
}

// ensureLedgerEntry records a webhook payment we haven't seen yet
func (s *Server) ensureLedgerEntry(req *WebhookRequest) error {
	if _, err := s.persistenceManager.LoadPayment(req.PaymentID); err == nil {
		return nil
	}

	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return err
	}

	now := time.Now()
	return s.persistenceManager.SavePayment(&payments.Payment{
		ID:        req.PaymentID,
		UID:       req.FromAddress,
		Amount:    req.Amount,
		Memo:      req.Memo,
		Metadata:  string(metadata),
		Status:    payments.StatusPending,
		ToAddress: req.ToAddress,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func verifySignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
