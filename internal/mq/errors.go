package mq

import "errors"

// Ошибки MQ.
var (
	// ErrNoChannel — соединение не готово (нет открытого канала).
	ErrNoChannel = errors.New("no channel available")

	// ErrConnectionClosed — соединение закрыто через Close.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrReject — Handler отклоняет сообщение без requeue (уйдёт в DLQ).
	ErrReject = errors.New("message rejected")
)
