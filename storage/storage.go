package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.skobk.in/skobkin/telegram-report-relay-bot/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDestinationTaken = errors.New("destination is owned by another user")
)

type Storage struct {
	db *gorm.DB
}

func New(dbPath string) (*Storage, error) {
	conn, err := db.Open(dbPath)
	if err != nil {
		slog.Error("storage: Failed to connect to database", "error", err, "path", dbPath)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewWithDB(conn), nil
}

// NewWithDB wraps an already migrated connection
func NewWithDB(conn *gorm.DB) *Storage {
	return &Storage{db: conn}
}

// GetConfig retrieves the config of an owner
func (s *Storage) GetConfig(ctx context.Context, ownerID int64) (*OwnerConfig, error) {
	var row db.OwnerConfig
	result := s.db.WithContext(ctx).Preload("Reviewers").Where("owner_id = ?", ownerID).Take(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		slog.Error("storage: Failed to get config", "error", result.Error, "owner_id", ownerID)
		return nil, fmt.Errorf("failed to get config: %w", result.Error)
	}
	return configFromRow(&row), nil
}

// ConfigByDestination retrieves the config owning a destination
func (s *Storage) ConfigByDestination(ctx context.Context, destinationID string) (*OwnerConfig, error) {
	var row db.OwnerConfig
	result := s.db.WithContext(ctx).Preload("Reviewers").
		Where("destination_id = ?", destinationID).
		Order("owner_id").
		Take(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		slog.Error("storage: Failed to get config by destination", "error", result.Error, "destination_id", destinationID)
		return nil, fmt.Errorf("failed to get config by destination: %w", result.Error)
	}
	return configFromRow(&row), nil
}

// ConfigsForReviewer retrieves every config listing userID as a reviewer, ordered by owner
func (s *Storage) ConfigsForReviewer(ctx context.Context, userID int64) ([]OwnerConfig, error) {
	var rows []db.OwnerConfig
	result := s.db.WithContext(ctx).Preload("Reviewers").
		Where("owner_id IN (SELECT owner_id FROM reviewers WHERE user_id = ?)", userID).
		Order("owner_id").
		Find(&rows)
	if result.Error != nil {
		slog.Error("storage: Failed to get configs for reviewer", "error", result.Error, "user_id", userID)
		return nil, fmt.Errorf("failed to get configs for reviewer: %w", result.Error)
	}

	configs := make([]OwnerConfig, 0, len(rows))
	for i := range rows {
		configs = append(configs, *configFromRow(&rows[i]))
	}
	return configs, nil
}

// PutConfig stores cfg, fully replacing any previous config of the same owner
func (s *Storage) PutConfig(ctx context.Context, cfg OwnerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	row, reviewers := rowFromConfig(cfg)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cfg.DestinationID != "" {
			var taken int64
			err := tx.Model(&db.OwnerConfig{}).
				Where("destination_id = ? AND owner_id <> ?", cfg.DestinationID, cfg.OwnerID).
				Count(&taken).Error
			if err != nil {
				return err
			}
			if taken > 0 {
				return ErrDestinationTaken
			}
		}

		if err := tx.Where("owner_id = ?", cfg.OwnerID).Delete(&db.Reviewer{}).Error; err != nil {
			return err
		}

		if err := tx.Omit("Reviewers").Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
			return err
		}

		if len(reviewers) > 0 {
			if err := tx.Create(&reviewers).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if errors.Is(err, ErrDestinationTaken) {
		return err
	}
	if err != nil {
		slog.Error("storage: Failed to put config", "error", err, "owner_id", cfg.OwnerID)
		return fmt.Errorf("failed to put config: %w", err)
	}
	return nil
}

// DeleteConfig removes the config of an owner together with every group link to its destination
func (s *Storage) DeleteConfig(ctx context.Context, ownerID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row db.OwnerConfig
		result := tx.Where("owner_id = ?", ownerID).Take(&row)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if result.Error != nil {
			return result.Error
		}

		if row.DestinationID != "" {
			links := tx.Where("destination_id = ?", row.DestinationID).Delete(&db.GroupLink{})
			if links.Error != nil {
				return links.Error
			}
			slog.Info("storage: Group links removed with config", "owner_id", ownerID,
				"destination_id", row.DestinationID, "count", links.RowsAffected)
		}

		if err := tx.Where("owner_id = ?", ownerID).Delete(&db.Reviewer{}).Error; err != nil {
			return err
		}

		return tx.Where("owner_id = ?", ownerID).Delete(&db.OwnerConfig{}).Error
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		slog.Error("storage: Failed to delete config", "error", err, "owner_id", ownerID)
		return fmt.Errorf("failed to delete config: %w", err)
	}
	return nil
}

// LinkGroup creates or replaces the link of a group
func (s *Storage) LinkGroup(ctx context.Context, link GroupLink) error {
	row := db.GroupLink{
		GroupID:       link.GroupID,
		DestinationID: link.DestinationID,
		GroupName:     link.GroupName,
		LinkedBy:      link.LinkedBy,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row)
	if result.Error != nil {
		slog.Error("storage: Failed to link group", "error", result.Error,
			"group_id", link.GroupID, "destination_id", link.DestinationID)
		return fmt.Errorf("failed to link group: %w", result.Error)
	}
	return nil
}

// UnlinkGroup removes the link of a group. It returns ErrNotFound if the group was not linked.
func (s *Storage) UnlinkGroup(ctx context.Context, groupID int64) error {
	result := s.db.WithContext(ctx).Where("group_id = ?", groupID).Delete(&db.GroupLink{})
	if result.Error != nil {
		slog.Error("storage: Failed to unlink group", "error", result.Error, "group_id", groupID)
		return fmt.Errorf("failed to unlink group: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetGroupLink retrieves the link of a group
func (s *Storage) GetGroupLink(ctx context.Context, groupID int64) (*GroupLink, error) {
	var row db.GroupLink
	result := s.db.WithContext(ctx).Where("group_id = ?", groupID).Take(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		slog.Error("storage: Failed to get group link", "error", result.Error, "group_id", groupID)
		return nil, fmt.Errorf("failed to get group link: %w", result.Error)
	}
	link := linkFromRow(&row)
	return &link, nil
}

// DestinationFor returns the destination a group is linked to
func (s *Storage) DestinationFor(ctx context.Context, groupID int64) (string, error) {
	link, err := s.GetGroupLink(ctx, groupID)
	if err != nil {
		return "", err
	}
	return link.DestinationID, nil
}

// GroupsFor retrieves all groups linked to a destination
func (s *Storage) GroupsFor(ctx context.Context, destinationID string) ([]GroupLink, error) {
	var rows []db.GroupLink
	result := s.db.WithContext(ctx).Where("destination_id = ?", destinationID).Order("group_name, group_id").Find(&rows)
	if result.Error != nil {
		slog.Error("storage: Failed to get linked groups", "error", result.Error, "destination_id", destinationID)
		return nil, fmt.Errorf("failed to get linked groups: %w", result.Error)
	}

	links := make([]GroupLink, 0, len(rows))
	for i := range rows {
		links = append(links, linkFromRow(&rows[i]))
	}
	return links, nil
}
