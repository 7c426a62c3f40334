package services

import (
	"context"
	"errors"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, apperrors.Persistence("could not retrieve products", err)
	}
	return products, nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, productError(err, "could not retrieve product")
	}
	return product, nil
}

// CreateProduct validates and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := validateStruct(product, "invalid product"); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return apperrors.Persistence("could not create product", err)
	}
	return nil
}

// UpdateProduct validates and stores changes to an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := validateStruct(product, "invalid product"); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return productError(err, "could not update product")
	}
	return nil
}

// DeleteProduct deletes a product by its ID. Past orders keep their snapshot.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return productError(err, "could not delete product")
	}
	return nil
}

func productError(err error, msg string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound("product not found")
	}
	return apperrors.Persistence(msg, err)
}
