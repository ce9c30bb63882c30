package server

import (
	"colorflow-server/internal/colorflow"
	"colorflow-server/internal/payments"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// APIErrorResponse is the HTTP error envelope
// tygo:generate
type APIErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ============================================================================
// AI TEXT (POST /api/ai)
// ============================================================================
// tygo:generate
type AITextRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// tygo:generate
type AITextResponse struct {
	Success bool   `json:"success"`
	Result  string `json:"result"`
}

// ============================================================================
// PAYMENTS (POST /api/create-pi-payment, /api/pi-approve, /api/pi-complete)
// ============================================================================
// tygo:generate
type CreatePaymentRequest struct {
	PaymentID   string            `json:"paymentId,omitempty"` // platform identifier when the SDK already created one
	Amount      float64           `json:"amount"`
	Memo        string            `json:"memo"`
	Metadata    payments.Metadata `json:"metadata"`
	AccessToken string            `json:"accessToken"`
}

// tygo:generate
type PaymentResponse struct {
	Success         bool              `json:"success"`
	Payment         *payments.Payment `json:"payment,omitempty"`
	Message         string            `json:"message,omitempty"`
	RealTransaction bool              `json:"realTransaction"`
	Timestamp       string            `json:"timestamp"`
}

// tygo:generate
type ApprovePaymentRequest struct {
	PaymentID string `json:"paymentId"`
}

// tygo:generate
type CompletePaymentRequest struct {
	PaymentID string `json:"paymentId"`
	TxID      string `json:"txid"`
}

// ============================================================================
// PI CONFIG (GET /api/pi-config)
// ============================================================================
// tygo:generate
type PiConfigResponse struct {
	Success          bool   `json:"success"`
	HasAPIKey        bool   `json:"hasApiKey"`
	HasWalletAddress bool   `json:"hasWalletAddress"`
	APIKeyValid      bool   `json:"apiKeyValid"`
	WalletAddress    string `json:"walletAddress"`
	Environment      string `json:"environment"`
	Timestamp        string `json:"timestamp"`
}

// ============================================================================
// WEBHOOK (POST /api/webhook)
// ============================================================================
// tygo:generate
type WebhookRequest struct {
	PaymentID   string            `json:"paymentId"`
	TxID        string            `json:"txid"`
	Amount      float64           `json:"amount"`
	Memo        string            `json:"memo"`
	Metadata    payments.Metadata `json:"metadata"`
	FromAddress string            `json:"from_address"`
	ToAddress   string            `json:"to_address"`
	Status      string            `json:"status"`
}

// tygo:generate
type WebhookResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

// ============================================================================
// WEBSOCKET: HELLO (hello)
// ============================================================================
// tygo:generate
type HelloRequest struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// tygo:generate
type HelloResponse struct {
	Token      string `json:"token"`
	PlayerID   string `json:"playerId"`
	HighScore  int    `json:"highScore"`
	Coins      int    `json:"coins"`
	AudioMuted bool   `json:"audioMuted"`
}

// ============================================================================
// WEBSOCKET: GAMEPLAY REQUESTS
// ============================================================================
// tygo:generate
type StartGameRequest struct {
	Difficulty string `json:"difficulty"`
}

// tygo:generate
type MatchPointsRequest struct {
	A int `json:"a"`
	B int `json:"b"`
}

// tygo:generate
type ActivatePowerUpRequest struct {
	Kind string `json:"kind"`
}

// tygo:generate
type PurchaseItemRequest struct {
	ItemID string `json:"itemId"`
}

// tygo:generate
type SetAudioRequest struct {
	Muted bool `json:"muted"`
}

// ============================================================================
// WEBSOCKET: SERVER PUSHES
// ============================================================================
// tygo:generate
type StateMessage struct {
	State *colorflow.ClientState `json:"state"`
}

// tygo:generate
type MatchResultMessage struct {
	Result colorflow.MatchResult  `json:"result"`
	State  *colorflow.ClientState `json:"state"`
}

// tygo:generate
type GameOverMessage struct {
	Score        int    `json:"score"`
	Level        int    `json:"level"`
	BestCombo    int    `json:"bestCombo"`
	CoinsAwarded int    `json:"coinsAwarded"`
	HighScore    int    `json:"highScore"`
	NewHighScore bool   `json:"newHighScore"`
	Text         string `json:"text,omitempty"`
}

// tygo:generate
type ChallengeTextMessage struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// tygo:generate
type SettingsMessage struct {
	AudioMuted bool `json:"audioMuted"`
}
