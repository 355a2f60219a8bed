// Package catalog manages the inventory hierarchy:
// product category -> product -> batch -> package.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/store"
)

type Service struct {
	store store.CatalogStore
	log   logger.Logger
}

func NewService(s store.CatalogStore, log logger.Logger) *Service {
	return &Service{store: s, log: log}
}

// --- Categories ---

func (s *Service) CreateCategory(ctx context.Context, name string) (models.ProductCategory, error) {
	if strings.TrimSpace(name) == "" {
		return models.ProductCategory{}, fmt.Errorf("%w: category name is required", domainerrors.ErrValidation)
	}
	return s.store.CreateCategory(ctx, models.ProductCategory{
		ID:   uuid.New(),
		Name: strings.TrimSpace(name),
	})
}

func (s *Service) ListCategories(ctx context.Context) ([]models.ProductCategory, error) {
	return s.store.ListCategories(ctx)
}

// --- Products ---

type CreateProductInput struct {
	Name                 string
	CategoryID           uuid.UUID
	RequiredStartTemp    float64
	RequiredEndTemp      float64
	HandlingInstructions string
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (models.Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Product{}, fmt.Errorf("%w: product name is required", domainerrors.ErrValidation)
	}
	if in.RequiredStartTemp > in.RequiredEndTemp {
		return models.Product{}, fmt.Errorf("%w: temperature band %f..%f is inverted",
			domainerrors.ErrValidation, in.RequiredStartTemp, in.RequiredEndTemp)
	}
	// The category must exist before products hang off it.
	if _, err := s.store.GetCategory(ctx, in.CategoryID); err != nil {
		return models.Product{}, err
	}

	return s.store.CreateProduct(ctx, models.Product{
		ID:                   uuid.New(),
		Name:                 strings.TrimSpace(in.Name),
		CategoryID:           in.CategoryID,
		RequiredStartTemp:    in.RequiredStartTemp,
		RequiredEndTemp:      in.RequiredEndTemp,
		HandlingInstructions: in.HandlingInstructions,
	})
}

func (s *Service) ListProducts(ctx context.Context, categoryID *uuid.UUID) ([]models.Product, error) {
	return s.store.ListProducts(ctx, categoryID)
}

// --- Batches ---

type CreateBatchInput struct {
	ProductID         uuid.UUID
	ManufacturerOrgID uuid.UUID
	Facility          string
	ProductionStart   time.Time
	ProductionEnd     time.Time
	QuantityProduced  int64
	ExpiryDate        time.Time
}

func (s *Service) CreateBatch(ctx context.Context, in CreateBatchInput) (models.Batch, error) {
	if in.ProductionStart.After(in.ProductionEnd) {
		return models.Batch{}, fmt.Errorf("%w: production window starts after it ends", domainerrors.ErrValidation)
	}
	if in.QuantityProduced <= 0 {
		return models.Batch{}, fmt.Errorf("%w: quantity produced must be positive", domainerrors.ErrValidation)
	}
	if !in.ExpiryDate.IsZero() && in.ExpiryDate.Before(in.ProductionEnd) {
		return models.Batch{}, fmt.Errorf("%w: expiry date precedes production end", domainerrors.ErrValidation)
	}
	if in.ManufacturerOrgID == uuid.Nil {
		return models.Batch{}, fmt.Errorf("%w: manufacturer organization is required", domainerrors.ErrValidation)
	}
	if _, err := s.store.GetProduct(ctx, in.ProductID); err != nil {
		return models.Batch{}, err
	}

	batch, err := s.store.CreateBatch(ctx, models.Batch{
		ID:                uuid.New(),
		ProductID:         in.ProductID,
		ManufacturerOrgID: in.ManufacturerOrgID,
		Facility:          strings.TrimSpace(in.Facility),
		ProductionStart:   in.ProductionStart,
		ProductionEnd:     in.ProductionEnd,
		QuantityProduced:  in.QuantityProduced,
		ReleaseStatus:     models.BatchPending,
		ExpiryDate:        in.ExpiryDate,
	})
	if err != nil {
		return models.Batch{}, err
	}
	s.log.Info("batch created", "batch_id", batch.ID, "product_id", batch.ProductID, "quantity", batch.QuantityProduced)
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (models.Batch, error) {
	return s.store.GetBatch(ctx, id)
}

func (s *Service) ListBatches(ctx context.Context, productID *uuid.UUID) ([]models.Batch, error) {
	return s.store.ListBatches(ctx, productID)
}

// --- Packages ---

type CreatePackageInput struct {
	BatchID     uuid.UUID
	PackageCode string
	Quantity    int64
	Unit        string
}

func (s *Service) CreatePackage(ctx context.Context, in CreatePackageInput) (models.Package, error) {
	if in.Quantity <= 0 {
		return models.Package{}, fmt.Errorf("%w: package quantity must be positive", domainerrors.ErrValidation)
	}
	if strings.TrimSpace(in.PackageCode) == "" {
		return models.Package{}, fmt.Errorf("%w: package code is required", domainerrors.ErrValidation)
	}
	batch, err := s.store.GetBatch(ctx, in.BatchID)
	if err != nil {
		return models.Package{}, err
	}

	// The batch's produced quantity bounds what can be packaged out of it.
	existing, err := s.store.ListPackages(ctx, &in.BatchID)
	if err != nil {
		return models.Package{}, err
	}
	var packaged int64
	for _, p := range existing {
		packaged += p.Quantity
	}
	if packaged+in.Quantity > batch.QuantityProduced {
		return models.Package{}, fmt.Errorf("%w: batch %s has %d unpackaged, requested %d",
			domainerrors.ErrValidation, batch.ID, batch.QuantityProduced-packaged, in.Quantity)
	}

	pkg, err := s.store.CreatePackage(ctx, models.Package{
		ID:                uuid.New(),
		BatchID:           in.BatchID,
		PackageCode:       strings.TrimSpace(in.PackageCode),
		Quantity:          in.Quantity,
		QuantityAvailable: in.Quantity,
		Unit:              strings.TrimSpace(in.Unit),
		Status:            models.PackageAvailable,
	})
	if err != nil {
		return models.Package{}, err
	}
	s.log.Info("package created", "package_id", pkg.ID, "code", pkg.PackageCode, "quantity", pkg.Quantity)
	return pkg, nil
}

func (s *Service) GetPackage(ctx context.Context, id uuid.UUID) (models.Package, error) {
	return s.store.GetPackage(ctx, id)
}

func (s *Service) ListPackages(ctx context.Context, batchID *uuid.UUID) ([]models.Package, error) {
	return s.store.ListPackages(ctx, batchID)
}
