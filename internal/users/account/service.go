// Copyright (c) 2026 Atrium. All rights reserved.

// Package account manages user profile retrieval and updates.
//
// It builds on the identity domain's account entity; credential and identity
// lifecycle operations stay in [identity.Service].
package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atriumhq/atrium/internal/users/identity"
	"github.com/atriumhq/atrium/pkg/pointer"
)

// # Service Layer

// Service orchestrates business logic for user profiles.
type Service struct {
	userRepository identity.UserRepository
	logger         *slog.Logger
}

// NewService constructs a new [Service] with its repository dependency.
func NewService(userRepo identity.UserRepository, logger *slog.Logger) *Service {
	return &Service{
		userRepository: userRepo,
		logger:         logger,
	}
}

// # Profile Management

/*
GetProfile retrieves the full private identity of a user.

Parameters:
  - context: context.Context
  - userUID: string

Returns:
  - *identity.User: The hydrated user profile
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, userUID string) (*identity.User, error) {
	user, err := service.userRepository.FindByUID(context, userUID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
GetPublicProfile retrieves a user's public profile by username.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - *identity.User: The hydrated user profile
  - error: Not found or execution failures
*/
func (service *Service) GetPublicProfile(context context.Context, username string) (*identity.User, error) {
	user, err := service.userRepository.FindByUsername(context, username)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfileInput defines the mutable subset of user profile fields.
type UpdateProfileInput struct {
	DisplayName *string
	AvatarURL   *string
	Bio         *string
}

/*
UpdateProfile applies a partial set of changes to a user's account metadata.

Description: Fetches the existing user state, overlays provided fields, and
synchronizes the change to persistent storage.

Parameters:
  - context: context.Context
  - userUID: string
  - input: UpdateProfileInput

Returns:
  - *identity.User: The updated user profile
  - error: Update or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userUID string, input UpdateProfileInput) (*identity.User, error) {
	user, err := service.userRepository.FindByUID(context, userUID)
	if err != nil {
		return nil, err
	}

	// Apply delta updates
	user.DisplayName = pointer.Fallback(input.DisplayName, user.DisplayName)
	user.AvatarURL = pointer.Fallback(input.AvatarURL, user.AvatarURL)
	user.Bio = pointer.Fallback(input.Bio, user.Bio)

	// Persist changes
	if err := service.userRepository.Update(context, user); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	service.logger.Info("user_profile_updated", slog.String("user_uid", userUID))

	return user, nil
}
