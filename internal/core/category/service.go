package category

import (
	"context"
	"log/slog"

	"github.com/atriumhq/atrium/pkg/slug"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (service *Service) List(context context.Context) ([]*Category, error) {
	return service.repo.List(context)
}

func (service *Service) Get(context context.Context, id int) (*Category, error) {
	return service.repo.GetByID(context, id)
}

func (service *Service) Create(context context.Context, category *Category) error {
	if category.Slug == "" {
		category.Slug = slug.From(category.Name)
	}
	if err := service.repo.Create(context, category); err != nil {
		return err
	}
	service.logger.Info("category_created", slog.Int("category_id", category.ID))
	return nil
}

func (service *Service) Update(context context.Context, category *Category) error {
	if category.Slug == "" {
		category.Slug = slug.From(category.Name)
	}
	return service.repo.Update(context, category)
}

func (service *Service) Delete(context context.Context, id int) error {
	if err := service.repo.Delete(context, id); err != nil {
		return err
	}
	service.logger.Info("category_deleted", slog.Int("category_id", id))
	return nil
}
