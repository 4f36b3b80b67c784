package db

// OwnerConfig is a row of the per-owner configuration table
type OwnerConfig struct {
	OwnerID       int64      `gorm:"primaryKey;autoIncrement:false"`
	DestinationID string     `gorm:"index"`
	Configured    bool
	Reviewers     []Reviewer `gorm:"foreignKey:OwnerID;references:OwnerID;constraint:OnDelete:CASCADE"`
}

// Reviewer is a member of an owner's reviewer set
type Reviewer struct {
	OwnerID int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID  int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

// GroupLink routes reports from a source group to a destination
type GroupLink struct {
	GroupID       int64  `gorm:"primaryKey;autoIncrement:false"`
	DestinationID string `gorm:"index;not null"`
	GroupName     string
	LinkedBy      int64
}
