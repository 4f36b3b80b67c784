// Package access derives reviewer rights from the stored owner configs.
package access

import (
	"context"
	"errors"
	"log/slog"

	"git.skobk.in/skobkin/telegram-report-relay-bot/storage"
)

// ConfigReader is the part of the storage the checker needs
type ConfigReader interface {
	GetConfig(ctx context.Context, ownerID int64) (*storage.OwnerConfig, error)
	ConfigByDestination(ctx context.Context, destinationID string) (*storage.OwnerConfig, error)
	ConfigsForReviewer(ctx context.Context, userID int64) ([]storage.OwnerConfig, error)
}

type Checker struct {
	configs ConfigReader
}

func NewChecker(configs ConfigReader) *Checker {
	return &Checker{configs: configs}
}

// IsReviewer reports whether any config lists userID as a reviewer
func (c *Checker) IsReviewer(ctx context.Context, userID int64) bool {
	_, ok := c.ReviewerConfig(ctx, userID)
	return ok
}

// ReviewerConfig returns the config userID acts for. The user's own config
// wins over configs of other owners that list them.
func (c *Checker) ReviewerConfig(ctx context.Context, userID int64) (*storage.OwnerConfig, bool) {
	own, err := c.configs.GetConfig(ctx, userID)
	if err == nil && own.Configured {
		return own, true
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Error("access: Failed to get own config", "error", err, "user_id", userID)
	}

	configs, err := c.configs.ConfigsForReviewer(ctx, userID)
	if err != nil {
		slog.Error("access: Failed to get reviewer configs", "error", err, "user_id", userID)
		return nil, false
	}
	for i := range configs {
		if configs[i].Configured && configs[i].HasReviewer(userID) {
			return &configs[i], true
		}
	}

	return nil, false
}

// IsReviewerFor reports whether userID reviews for the owner of destinationID
func (c *Checker) IsReviewerFor(ctx context.Context, userID int64, destinationID string) bool {
	cfg, err := c.configs.ConfigByDestination(ctx, destinationID)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		slog.Error("access: Failed to get config by destination", "error", err,
			"user_id", userID, "destination_id", destinationID)
		return false
	}

	return cfg.Configured && cfg.HasReviewer(userID)
}
