package services_test

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenCatalog fails every write so persistence errors can be observed.
type brokenCatalog struct {
	*repositories.MockProductRepository
}

var errDiskFull = errors.New("disk full")

func (brokenCatalog) GetAll(ctx context.Context) ([]models.Product, error) { return nil, errDiskFull }
func (brokenCatalog) Create(ctx context.Context, p *models.Product) error  { return errDiskFull }
func (brokenCatalog) Update(ctx context.Context, p *models.Product) error  { return errDiskFull }

func seededCatalog(t *testing.T) (*services.ProductService, *repositories.MockProductRepository) {
	t.Helper()
	repo := repositories.NewMockProductRepository()
	for _, p := range []models.Product{
		{ID: "prod-keyboard", Name: "Keyboard", Price: 45.5, Stock: 12},
		{ID: "prod-cable", Name: "Cable", Price: 3.99, Stock: 300},
	} {
		p := p
		require.NoError(t, repo.Create(context.Background(), &p))
	}
	return services.NewProductService(repo), repo
}

func TestProductService_ListAndLookup(t *testing.T) {
	svc, _ := seededCatalog(t)
	ctx := context.Background()

	products, err := svc.GetAllProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Cable", products[0].Name)
	assert.Equal(t, "Keyboard", products[1].Name)

	keyboard, err := svc.GetProductByID(ctx, "prod-keyboard")
	require.NoError(t, err)
	assert.Equal(t, 45.5, keyboard.Price)

	_, err = svc.GetProductByID(ctx, "prod-missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Equal(t, "product not found", apperrors.PublicMessage(err))
}

func TestProductService_CreateRejectsInvalidProducts(t *testing.T) {
	svc, _ := seededCatalog(t)

	cases := map[string]struct {
		product models.Product
		field   string
	}{
		"short name":     {models.Product{Name: "Ab", Price: 1}, "name"},
		"zero price":     {models.Product{Name: "Mouse", Price: 0}, "price"},
		"negative stock": {models.Product{Name: "Mouse", Price: 5, Stock: -1}, "stock"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := tc.product
			err := svc.CreateProduct(context.Background(), &p)
			require.True(t, apperrors.Is(err, apperrors.KindValidation))
			assert.Contains(t, apperrors.FieldsOf(err), tc.field)
			assert.Empty(t, p.ID, "invalid products are never stored")
		})
	}
}

func TestProductService_CreateUpdateDelete(t *testing.T) {
	svc, _ := seededCatalog(t)
	ctx := context.Background()

	mouse := &models.Product{Name: "Mouse", Price: 19.99, Stock: 40}
	require.NoError(t, svc.CreateProduct(ctx, mouse))
	require.NotEmpty(t, mouse.ID)

	mouse.Price = 17.5
	require.NoError(t, svc.UpdateProduct(ctx, mouse))
	stored, err := svc.GetProductByID(ctx, mouse.ID)
	require.NoError(t, err)
	assert.Equal(t, 17.5, stored.Price)

	require.NoError(t, svc.DeleteProduct(ctx, mouse.ID))
	_, err = svc.GetProductByID(ctx, mouse.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	err = svc.DeleteProduct(ctx, mouse.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	ghost := &models.Product{ID: "prod-ghost", Name: "Ghost", Price: 1}
	err = svc.UpdateProduct(ctx, ghost)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestProductService_PersistenceFailures(t *testing.T) {
	svc := services.NewProductService(brokenCatalog{repositories.NewMockProductRepository()})
	ctx := context.Background()

	_, err := svc.GetAllProducts(ctx)
	assert.True(t, apperrors.Is(err, apperrors.KindPersistence))

	err = svc.CreateProduct(ctx, &models.Product{Name: "Mouse", Price: 5})
	assert.True(t, apperrors.Is(err, apperrors.KindPersistence))
	assert.ErrorIs(t, err, errDiskFull)

	err = svc.UpdateProduct(ctx, &models.Product{ID: "prod-x", Name: "Mouse", Price: 5})
	assert.True(t, apperrors.Is(err, apperrors.KindPersistence))
}
