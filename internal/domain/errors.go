package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrDailyRefundCap     = errors.New("daily refund cap exceeded")
	ErrAlreadyRefunded    = errors.New("generation already refunded")
	ErrNotRefundable      = errors.New("generation not eligible for refund")
	ErrQualityStop        = errors.New("source image rejected by quality check")
	ErrContentPolicy      = errors.New("content policy violation")
	ErrProviderRejected   = errors.New("provider rejected submission")
	ErrStorageFailed      = errors.New("durable asset storage failed")
	ErrInvalidTransition  = errors.New("illegal task status transition")
)
