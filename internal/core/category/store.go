package category

import "context"

type Repository interface {
	List(context context.Context) ([]*Category, error)
	GetByID(context context.Context, id int) (*Category, error)
	Create(context context.Context, category *Category) error
	Update(context context.Context, category *Category) error

	// Delete removes a category. Categories referenced by published content
	// cannot be removed; callers receive [apperr.Conflict] instead.
	Delete(context context.Context, id int) error
}
