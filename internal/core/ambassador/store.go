package ambassador

import "context"

type Repository interface {
	// ListActive returns active ambassadors in sort order.
	ListActive(context context.Context) ([]*Ambassador, error)

	// ListAll returns every ambassador for the admin panel.
	ListAll(context context.Context) ([]*Ambassador, error)

	GetByID(context context.Context, id int) (*Ambassador, error)
	Create(context context.Context, ambassador *Ambassador) error
	Update(context context.Context, ambassador *Ambassador) error
	Delete(context context.Context, id int) error
}
