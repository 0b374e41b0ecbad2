package ambassador

import (
	"context"
	"log/slog"
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

func (service *Service) ListActive(context context.Context) ([]*Ambassador, error) {
	return service.repo.ListActive(context)
}

func (service *Service) ListAll(context context.Context) ([]*Ambassador, error) {
	return service.repo.ListAll(context)
}

func (service *Service) Get(context context.Context, id int) (*Ambassador, error) {
	return service.repo.GetByID(context, id)
}

func (service *Service) Create(context context.Context, ambassador *Ambassador) error {
	if err := service.repo.Create(context, ambassador); err != nil {
		return err
	}
	service.logger.Info("ambassador_created", slog.Int("ambassador_id", ambassador.ID))
	return nil
}

func (service *Service) Update(context context.Context, ambassador *Ambassador) error {
	return service.repo.Update(context, ambassador)
}

func (service *Service) Delete(context context.Context, id int) error {
	if err := service.repo.Delete(context, id); err != nil {
		return err
	}
	service.logger.Info("ambassador_deleted", slog.Int("ambassador_id", id))
	return nil
}
