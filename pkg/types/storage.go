package types

import "context"

type CategoryService interface {
	ListCategories(ctx context.Context) ([]Category, error)
}

// SubCategoryService lists subcategories, scoped to categoryId unless it is
// empty.
type SubCategoryService interface {
	ListSubCategories(ctx context.Context, categoryId string) ([]SubCategory, error)
}

type ProductService interface {
	ListProducts(ctx context.Context, req ProductListRequest) (ProductList, error)
}

// CatalogService is the full remote collaborator.
type CatalogService interface {
	CategoryService
	SubCategoryService
	ProductService
}
