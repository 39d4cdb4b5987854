package service

import (
	"errors"
	"fmt"

	"github.com/vaultpass/credcache/internal/crypto"
	"github.com/vaultpass/credcache/internal/repository"
)

// ErrValidation is wrapped by every input validation error.
var ErrValidation = errors.New("validation failed")

var (
	// ErrVaultLocked is returned by vault operations while no key is installed.
	ErrVaultLocked = fmt.Errorf("vault is locked: %w", crypto.ErrNoKey)

	ErrEntryNotFound = repository.ErrEntryNotFound
	ErrNotRegistered = repository.ErrNotRegistered

	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrAlreadyRegistered  = errors.New("a master credential is already registered")

	errCredentialChanged = errors.New("master credential changed since unlock")
)

var (
	ErrWebsiteNameRequired = fmt.Errorf("%w: website name is required", ErrValidation)
	ErrUsernameRequired    = fmt.Errorf("%w: username is required", ErrValidation)
	ErrPasswordRequired    = fmt.Errorf("%w: password is required", ErrValidation)
	ErrEmptyPatch          = fmt.Errorf("%w: no fields to update", ErrValidation)
	ErrInvalidText         = fmt.Errorf("%w: text fields must be valid UTF-8", ErrValidation)
	ErrPasswordMismatch    = fmt.Errorf("%w: password and confirm password do not match", ErrValidation)
	ErrWeakPassword        = fmt.Errorf("%w: master password needs at least 8 characters, a digit and a special character", ErrValidation)
)
