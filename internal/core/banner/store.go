package banner

import "context"

type Repository interface {
	// ListVisible returns active banners inside their display window, in
	// sort order.
	ListVisible(context context.Context) ([]*Banner, error)

	// ListAll returns every banner for the admin panel.
	ListAll(context context.Context) ([]*Banner, error)

	GetByID(context context.Context, id int) (*Banner, error)
	Create(context context.Context, banner *Banner) error
	Update(context context.Context, banner *Banner) error
	Delete(context context.Context, id int) error
}
