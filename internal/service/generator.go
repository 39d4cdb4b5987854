package service

import (
	"github.com/vaultpass/credcache/internal/crypto"
	"github.com/vaultpass/credcache/internal/model"
)

// GeneratorService handles password generation business logic.
type GeneratorService struct{}

// NewGeneratorService creates a new GeneratorService.
func NewGeneratorService() *GeneratorService {
	return &GeneratorService{}
}

// Generate produces a password based on the given request. Missing fields
// take the generator defaults.
func (s *GeneratorService) Generate(req model.GenerateRequest) (model.GenerateResponse, error) {
	def := crypto.DefaultOptions()
	opts := crypto.GeneratorOptions{
		Length:    req.Length,
		Uppercase: valueOrDefault(req.Uppercase, def.Uppercase),
		Digits:    valueOrDefault(req.Digits, def.Digits),
		Specials:  valueOrDefault(req.Specials, def.Specials),
	}

	if opts.Length == 0 {
		opts.Length = def.Length
	}

	password, err := crypto.Generate(opts)
	if err != nil {
		return model.GenerateResponse{}, err
	}

	return model.GenerateResponse{
		Password: password,
		Length:   len(password),
	}, nil
}

// valueOrDefault returns the dereferenced pointer value, or the fallback if nil.
func valueOrDefault[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
