package service

import (
	"errors"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
)

// storeErr normalizes a DataStore failure. Missing rows keep their
// *domain.ErrNotFound type; everything else becomes *domain.ErrPersistence.
func storeErr(op string, entity domain.Entity, err error) error {
	if err == nil {
		return nil
	}
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return err
	}
	var persist *domain.ErrPersistence
	if errors.As(err, &persist) {
		return err
	}
	return &domain.ErrPersistence{Op: op, Entity: entity, Err: err}
}
