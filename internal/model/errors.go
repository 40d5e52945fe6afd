package model

import "errors"

var (
	// Participant errors
	ErrPesertaNotFound = errors.New("peserta tidak terdaftar")
	ErrInvalidPeserta  = errors.New("data peserta tidak valid")

	// Bus errors
	ErrBusNotFound = errors.New("bus tidak ditemukan")
	ErrBusFull     = errors.New("Bus sudah penuh")
	ErrBusMismatch = errors.New("peserta tidak terdaftar di bus ini")
	ErrInvalidBus  = errors.New("data bus tidak valid")

	// Status errors
	ErrStatusNotFound   = errors.New("status tidak ditemukan")
	ErrTemplateNotFound = errors.New("template status tidak ditemukan")
	ErrTemplateExists   = errors.New("template status sudah ada")
	ErrInvalidName      = errors.New("nama status tidak valid")

	// General errors
	ErrUnauthorized = errors.New("unauthorized")
)
