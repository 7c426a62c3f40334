package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository keeps the catalog in memory. Deleted products are
// hidden from reads the same way GORM's soft delete hides them.
type MockProductRepository struct {
	mu       sync.RWMutex
	products map[string]models.Product
	deleted  map[string]struct{}
}

// NewMockProductRepository returns an empty in-memory catalog.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
		deleted:  make(map[string]struct{}),
	}
}

func (r *MockProductRepository) live(id string) (models.Product, bool) {
	if _, gone := r.deleted[id]; gone {
		return models.Product{}, false
	}
	p, ok := r.products[id]
	return p, ok
}

// GetAll lists the live catalog ordered by name.
func (r *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog := make([]models.Product, 0, len(r.products))
	for id := range r.products {
		if p, ok := r.live(id); ok {
			catalog = append(catalog, p)
		}
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })
	return catalog, nil
}

// GetByID retrieves a live product by its ID.
func (r *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.live(id)
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

// Create assigns an ID when the caller did not choose one.
func (r *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	now := time.Now()
	product.CreatedAt, product.UpdatedAt = now, now
	r.products[product.ID] = *product
	return nil
}

// Update replaces an existing product, keeping its creation time.
func (r *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.live(product.ID)
	if !ok {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now()
	r.products[product.ID] = *product
	return nil
}

// Delete hides a product from later reads.
func (r *MockProductRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live(id); !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	r.deleted[id] = struct{}{}
	return nil
}
