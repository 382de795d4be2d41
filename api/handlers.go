package api

import (
	"math/big"
	"net/http"
	"strings"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// SubmitTransactionRequest is the JSON body of a transaction submission.
//
// Fields:
// - Kind: the operation kind, case-insensitive.
// - SourceChain: the chain id the operation originates from.
// - DestChain: the chain id the operation targets.
// - Asset: the identifier of the asset to move.
// - Amount: the amount in minor units, base-10 integer string.
// - Recipient: the recipient address on the destination chain.
// - Optimization: the fee/speed preference; defaults to standard.
// - FeeAsset: optional override asset used to pay fees.
// - TimeoutMs: optional submission timeout override in milliseconds.
// - IncludeRefund: whether to request refund handling on failure.
// - Route: explicit chain id path for multi-hop operations.
type SubmitTransactionRequest struct {
	Kind          string   `json:"kind" binding:"required"`
	SourceChain   uint64   `json:"sourceChain"`
	DestChain     uint64   `json:"destChain"`
	Asset         string   `json:"asset" binding:"required"`
	Amount        string   `json:"amount" binding:"required"`
	Recipient     string   `json:"recipient" binding:"required"`
	Optimization  string   `json:"optimization"`
	FeeAsset      string   `json:"feeAsset"`
	TimeoutMs     int64    `json:"timeoutMs"`
	IncludeRefund bool     `json:"includeRefund"`
	Route         []uint64 `json:"route"`
}

// SubmitTransactionResponse is the JSON body returned for a submission.
type SubmitTransactionResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// TransactionResponse is the JSON view of a transaction snapshot.
type TransactionResponse struct {
	TransactionID string         `json:"transactionId"`
	Kind          string         `json:"kind"`
	SourceChain   uint64         `json:"sourceChain"`
	DestChain     uint64         `json:"destChain"`
	Asset         string         `json:"asset"`
	Amount        string         `json:"amount"`
	Recipient     string         `json:"recipient"`
	FeeAsset      string         `json:"feeAsset,omitempty"`
	Optimization  string         `json:"optimization"`
	IncludeRefund bool           `json:"includeRefund"`
	Status        string         `json:"status"`
	Attempt       int            `json:"attempt"`
	CurrentHop    int            `json:"currentHop"`
	Hash          string         `json:"hash,omitempty"`
	LastError     string         `json:"lastError,omitempty"`
	Quote         *QuoteResponse `json:"quote,omitempty"`
	Hops          []HopResponse  `json:"hops,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// QuoteResponse is the JSON view of the fee quote a submission was sized with.
type QuoteResponse struct {
	EstimatedFee        string    `json:"estimatedFee"`
	EstimatedDurationMs int64     `json:"estimatedDurationMs"`
	Confidence          float64   `json:"confidence"`
	ComputedAt          time.Time `json:"computedAt"`
}

// HopResponse is the JSON view of one leg of a multi-hop operation.
type HopResponse struct {
	SourceChain uint64 `json:"sourceChain"`
	DestChain   uint64 `json:"destChain"`
	Hash        string `json:"hash,omitempty"`
	InBlock     bool   `json:"inBlock"`
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and human-readable message of
// a failure. TransactionID is set when the request was rejected after an id
// was already assigned.
type ErrorDetail struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId,omitempty"`
}

func (s *Server) handleSubmitTransaction(c *gin.Context) {
	var req SubmitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: "amount must be a base-10 integer string",
			},
		})
		return
	}

	request := &types.OperationRequest{
		Kind:          types.OperationKind(strings.ToUpper(req.Kind)),
		SourceChain:   req.SourceChain,
		DestChain:     req.DestChain,
		Asset:         req.Asset,
		Amount:        amount,
		Recipient:     req.Recipient,
		Optimization:  types.ParseOptimization(strings.ToUpper(req.Optimization)),
		FeeAsset:      req.FeeAsset,
		Timeout:       time.Duration(req.TimeoutMs) * time.Millisecond,
		IncludeRefund: req.IncludeRefund,
		Route:         req.Route,
	}

	transactionID, err := s.core.Submit(c.Request.Context(), request)
	if err != nil {
		s.logger.WithError(err).WithField("transactionID", transactionID).Warn("Transaction submission rejected")
		c.JSON(submissionErrorStatus(err), ErrorResponse{
			Error: ErrorDetail{
				Code:          submissionErrorCode(err),
				Message:       err.Error(),
				TransactionID: transactionID,
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, SubmitTransactionResponse{
		TransactionID: transactionID,
		Status:        types.StatusPending.String(),
	})
}

func (s *Server) handleGetTransaction(c *gin.Context) {
	transactionID := c.Param("id")

	tx, err := s.core.GetStatus(transactionID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, transactionResponse(tx))
}

func (s *Server) handleCancelTransaction(c *gin.Context) {
	transactionID := c.Param("id")

	if err := s.core.Cancel(transactionID); err != nil {
		status := http.StatusConflict
		code := "CANCELLATION_FAILED"
		if errors.Is(err, cerrors.ErrTransactionNotFound) {
			status = http.StatusNotFound
			code = "NOT_FOUND"
		}

		c.JSON(status, ErrorResponse{
			Error: ErrorDetail{
				Code:    code,
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"transactionId": transactionID,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	chains := s.core.HealthStatus()

	status := "healthy"
	for _, connected := range chains {
		if !connected {
			status = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"chains": chains,
	})
}

// submissionErrorStatus maps an intake error to the HTTP status of the
// rejection. Malformed input is the caller's bug; an unsupported route is a
// well-formed request the deployment cannot serve.
func submissionErrorStatus(err error) int {
	if errors.Is(err, cerrors.ErrUnsupportedRoute) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, cerrors.ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusServiceUnavailable
}

func submissionErrorCode(err error) string {
	switch {
	case errors.Is(err, cerrors.ErrUnsupportedRoute):
		return "UNSUPPORTED_ROUTE"
	case errors.Is(err, cerrors.ErrValidation):
		return "VALIDATION_FAILED"
	default:
		return "SUBMISSION_FAILED"
	}
}

func transactionResponse(tx *types.Transaction) TransactionResponse {
	amount := "0"
	if tx.Amount != nil {
		amount = tx.Amount.String()
	}

	response := TransactionResponse{
		TransactionID: tx.ID,
		Kind:          tx.Kind.String(),
		SourceChain:   tx.SourceChain,
		DestChain:     tx.DestChain,
		Asset:         tx.Asset,
		Amount:        amount,
		Recipient:     tx.Recipient,
		FeeAsset:      tx.FeeAsset,
		Optimization:  tx.Optimization.String(),
		IncludeRefund: tx.IncludeRefund,
		Status:        tx.Status.String(),
		Attempt:       tx.Attempt,
		CurrentHop:    tx.CurrentHop,
		Hash:          tx.Hash,
		LastError:     tx.LastError,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}

	if tx.Quote != nil {
		response.Quote = &QuoteResponse{
			EstimatedFee:        tx.Quote.EstimatedFee.String(),
			EstimatedDurationMs: tx.Quote.EstimatedDuration.Milliseconds(),
			Confidence:          tx.Quote.Confidence,
			ComputedAt:          tx.Quote.ComputedAt,
		}
	}

	for _, hop := range tx.Hops {
		response.Hops = append(response.Hops, HopResponse{
			SourceChain: hop.SourceChain,
			DestChain:   hop.DestChain,
			Hash:        hop.Hash,
			InBlock:     hop.InBlock,
		})
	}

	return response
}
