package banner

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

func (service *Service) ListVisible(context context.Context) ([]*Banner, error) {
	return service.repo.ListVisible(context)
}

func (service *Service) ListAll(context context.Context) ([]*Banner, error) {
	return service.repo.ListAll(context)
}

func (service *Service) Get(context context.Context, id int) (*Banner, error) {
	return service.repo.GetByID(context, id)
}

func (service *Service) Create(context context.Context, banner *Banner) error {
	if err := service.repo.Create(context, banner); err != nil {
		return err
	}
	service.logger.Info("banner_created", slog.Int("banner_id", banner.ID))
	return nil
}

func (service *Service) Update(context context.Context, banner *Banner) error {
	return service.repo.Update(context, banner)
}

func (service *Service) Delete(context context.Context, id int) error {
	if err := service.repo.Delete(context, id); err != nil {
		return err
	}
	service.logger.Info("banner_deleted", slog.Int("banner_id", id))
	return nil
}
