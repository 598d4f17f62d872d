package services

import "errors"

var (
	// ErrValidation - входные данные не прошли проверку (нераспознанный webhook, сумма и т.п.).
	ErrValidation = errors.New("validation failed")
	// ErrProviderError - платёжный провайдер недоступен или ответил ошибкой.
	ErrProviderError = errors.New("payment provider error")

	ErrInvalidCashoutRequest = errors.New("invalid cashout request")
	ErrCashoutFailed         = errors.New("cashout failed")
	ErrNotCampaignOwner      = errors.New("user does not own the campaign")
	ErrCampaignNotActive     = errors.New("campaign is not accepting donations")
)
