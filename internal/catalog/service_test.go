package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/store"
)

func newService() *Service {
	return NewService(store.NewMemoryStore(), logger.NewNop())
}

func seedHierarchy(t *testing.T, svc *Service) (models.ProductCategory, models.Product, models.Batch) {
	t.Helper()
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, "Vaccines")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:              "MMR Vaccine",
		CategoryID:        cat.ID,
		RequiredStartTemp: 2,
		RequiredEndTemp:   8,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	batch, err := svc.CreateBatch(ctx, CreateBatchInput{
		ProductID:         product.ID,
		ManufacturerOrgID: uuid.New(),
		Facility:          "Plant 7",
		ProductionStart:   start,
		ProductionEnd:     start.AddDate(0, 0, 3),
		QuantityProduced:  1000,
		ExpiryDate:        start.AddDate(2, 0, 0),
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return cat, product, batch
}

func TestCreateCategoryValidation(t *testing.T) {
	svc := newService()
	if _, err := svc.CreateCategory(context.Background(), "   "); !errors.Is(err, domainerrors.ErrValidation) {
		t.Errorf("blank name: got %v, want ErrValidation", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	cat, err := svc.CreateCategory(ctx, "Biologics")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	if _, err := svc.CreateProduct(ctx, CreateProductInput{Name: "", CategoryID: cat.ID}); !errors.Is(err, domainerrors.ErrValidation) {
		t.Errorf("blank name: got %v, want ErrValidation", err)
	}
	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name: "Insulin", CategoryID: cat.ID, RequiredStartTemp: 8, RequiredEndTemp: 2,
	})
	if !errors.Is(err, domainerrors.ErrValidation) {
		t.Errorf("inverted temperature band: got %v, want ErrValidation", err)
	}
	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Insulin", CategoryID: uuid.New()})
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("unknown category: got %v, want ErrNotFound", err)
	}
}

func TestCreateBatchValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, product, _ := seedHierarchy(t, svc)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	base := CreateBatchInput{
		ProductID:         product.ID,
		ManufacturerOrgID: uuid.New(),
		ProductionStart:   start,
		ProductionEnd:     start.AddDate(0, 0, 2),
		QuantityProduced:  500,
	}

	tests := []struct {
		name   string
		mutate func(*CreateBatchInput)
		want   error
	}{
		{"window inverted", func(in *CreateBatchInput) { in.ProductionEnd = start.AddDate(0, 0, -1) }, domainerrors.ErrValidation},
		{"zero quantity", func(in *CreateBatchInput) { in.QuantityProduced = 0 }, domainerrors.ErrValidation},
		{"expiry before production end", func(in *CreateBatchInput) { in.ExpiryDate = start }, domainerrors.ErrValidation},
		{"missing manufacturer", func(in *CreateBatchInput) { in.ManufacturerOrgID = uuid.Nil }, domainerrors.ErrValidation},
		{"unknown product", func(in *CreateBatchInput) { in.ProductID = uuid.New() }, domainerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			if _, err := svc.CreateBatch(ctx, in); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	batch, err := svc.CreateBatch(ctx, base)
	if err != nil {
		t.Fatalf("valid batch: %v", err)
	}
	if batch.ReleaseStatus != models.BatchPending {
		t.Errorf("new batch release status = %s, want PENDING", batch.ReleaseStatus)
	}
}

func TestCreatePackageBoundedByBatch(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, _, batch := seedHierarchy(t, svc)

	pkg, err := svc.CreatePackage(ctx, CreatePackageInput{
		BatchID: batch.ID, PackageCode: "VX-001", Quantity: 600, Unit: "vials",
	})
	if err != nil {
		t.Fatalf("create package: %v", err)
	}
	if pkg.QuantityAvailable != 600 {
		t.Errorf("available = %d, want full quantity 600", pkg.QuantityAvailable)
	}
	if pkg.Status != models.PackageAvailable {
		t.Errorf("status = %s, want AVAILABLE", pkg.Status)
	}

	// 600 of 1000 are packaged; another 500 would overrun the batch.
	_, err = svc.CreatePackage(ctx, CreatePackageInput{
		BatchID: batch.ID, PackageCode: "VX-002", Quantity: 500, Unit: "vials",
	})
	if !errors.Is(err, domainerrors.ErrValidation) {
		t.Errorf("overpackaging: got %v, want ErrValidation", err)
	}

	// The remaining 400 fit exactly.
	if _, err := svc.CreatePackage(ctx, CreatePackageInput{
		BatchID: batch.ID, PackageCode: "VX-003", Quantity: 400, Unit: "vials",
	}); err != nil {
		t.Errorf("exact remainder: %v", err)
	}
}

func TestCreatePackageValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, _, batch := seedHierarchy(t, svc)

	if _, err := svc.CreatePackage(ctx, CreatePackageInput{BatchID: batch.ID, PackageCode: "X", Quantity: 0}); !errors.Is(err, domainerrors.ErrValidation) {
		t.Errorf("zero quantity: got %v, want ErrValidation", err)
	}
	if _, err := svc.CreatePackage(ctx, CreatePackageInput{BatchID: batch.ID, PackageCode: " ", Quantity: 5}); !errors.Is(err, domainerrors.ErrValidation) {
		t.Errorf("blank code: got %v, want ErrValidation", err)
	}
	if _, err := svc.CreatePackage(ctx, CreatePackageInput{BatchID: uuid.New(), PackageCode: "X", Quantity: 5}); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Errorf("unknown batch: got %v, want ErrNotFound", err)
	}
}

func TestListProductsByCategory(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	cat1, _ := svc.CreateCategory(ctx, "Vaccines")
	cat2, _ := svc.CreateCategory(ctx, "Antibiotics")
	if _, err := svc.CreateProduct(ctx, CreateProductInput{Name: "A", CategoryID: cat1.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateProduct(ctx, CreateProductInput{Name: "B", CategoryID: cat2.ID}); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := svc.ListProducts(ctx, nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all products = %d, want 2", len(all))
	}

	only, err := svc.ListProducts(ctx, &cat1.ID)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(only) != 1 || only[0].Name != "A" {
		t.Errorf("filtered products = %+v, want just A", only)
	}
}
