package storage

import (
	"errors"
	"fmt"
	"slices"

	"git.skobk.in/skobkin/telegram-report-relay-bot/db"
)

var ErrInvalidConfig = errors.New("invalid owner config")

// OwnerConfig is the review setup of one bot owner
type OwnerConfig struct {
	OwnerID       int64
	DestinationID string
	// ReviewerIDs is sorted and always contains OwnerID
	ReviewerIDs []int64
	Configured  bool
}

// GroupLink routes reports from a source group to a destination
type GroupLink struct {
	GroupID       int64
	DestinationID string
	GroupName     string
	LinkedBy      int64
}

// NewOwnerConfig builds a configured OwnerConfig. The owner is always added
// to the reviewer set and duplicates are dropped.
func NewOwnerConfig(ownerID int64, destinationID string, reviewerIDs []int64) OwnerConfig {
	reviewers := make([]int64, 0, len(reviewerIDs)+1)
	reviewers = append(reviewers, ownerID)
	reviewers = append(reviewers, reviewerIDs...)
	slices.Sort(reviewers)

	return OwnerConfig{
		OwnerID:       ownerID,
		DestinationID: destinationID,
		ReviewerIDs:   slices.Compact(reviewers),
		Configured:    destinationID != "",
	}
}

// HasReviewer reports whether userID may act as a reviewer for this config
func (c *OwnerConfig) HasReviewer(userID int64) bool {
	if userID == c.OwnerID {
		return true
	}
	return slices.Contains(c.ReviewerIDs, userID)
}

// Validate checks that a configured config has a destination and lists its owner
func (c *OwnerConfig) Validate() error {
	if c.OwnerID == 0 {
		return fmt.Errorf("%w: owner id is empty", ErrInvalidConfig)
	}
	if !c.Configured {
		return nil
	}
	if c.DestinationID == "" {
		return fmt.Errorf("%w: destination is empty", ErrInvalidConfig)
	}
	if !slices.Contains(c.ReviewerIDs, c.OwnerID) {
		return fmt.Errorf("%w: owner is not a reviewer", ErrInvalidConfig)
	}
	return nil
}

func configFromRow(row *db.OwnerConfig) *OwnerConfig {
	reviewers := make([]int64, 0, len(row.Reviewers))
	for _, r := range row.Reviewers {
		reviewers = append(reviewers, r.UserID)
	}
	slices.Sort(reviewers)

	return &OwnerConfig{
		OwnerID:       row.OwnerID,
		DestinationID: row.DestinationID,
		ReviewerIDs:   reviewers,
		Configured:    row.Configured,
	}
}

func rowFromConfig(cfg OwnerConfig) (*db.OwnerConfig, []db.Reviewer) {
	reviewers := make([]db.Reviewer, 0, len(cfg.ReviewerIDs))
	for _, id := range cfg.ReviewerIDs {
		reviewers = append(reviewers, db.Reviewer{OwnerID: cfg.OwnerID, UserID: id})
	}

	return &db.OwnerConfig{
		OwnerID:       cfg.OwnerID,
		DestinationID: cfg.DestinationID,
		Configured:    cfg.Configured,
	}, reviewers
}

func linkFromRow(row *db.GroupLink) GroupLink {
	return GroupLink{
		GroupID:       row.GroupID,
		DestinationID: row.DestinationID,
		GroupName:     row.GroupName,
		LinkedBy:      row.LinkedBy,
	}
}
