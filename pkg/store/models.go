package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID            string `gorm:"primaryKey"`
	Username      string `gorm:"uniqueIndex;not null"`
	Email         string `gorm:"uniqueIndex;not null"`
	PasswordHash  string `gorm:"not null"`
	Role          string `gorm:"not null;index"`
	Organization  string
	Phone         string
	Active        bool `gorm:"not null;default:true"`
	LoginAttempts int  `gorm:"not null;default:0"`
	LockedUntil   *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

type RoleModel struct {
	Name        string `gorm:"primaryKey"`
	Description string
	Permissions datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time
}

type CategoryModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	ColorCode   string
	Active      bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type ContentModel struct {
	ID               string `gorm:"primaryKey"`
	Title            string `gorm:"not null"`
	Description      string `gorm:"type:text"`
	ContentType      string `gorm:"not null"`
	CategoryID       string `gorm:"index"`
	FileKey          string
	OriginalFilename string
	SizeBytes        int64 `gorm:"not null"`
	ThumbnailKey     string
	CreatorID        string `gorm:"not null;index:idx_content_creator_status"`
	Status           string `gorm:"not null;index:idx_content_creator_status"`
	Tags             string
	ViewCount        int64 `gorm:"not null;default:0"`
	SubmittedAt      *time.Time
	ReviewedBy       string
	ReviewedAt       *time.Time
	RejectedReason   string `gorm:"type:text"`
	PublishedBy      string
	PublishedAt      *time.Time
	CreatedAt        time.Time `gorm:"not null;index"`
	UpdatedAt        time.Time `gorm:"not null"`
}

type WorkflowModel struct {
	ID              string `gorm:"primaryKey"`
	ContentID       string `gorm:"uniqueIndex;not null"`
	Status          string `gorm:"not null;index"`
	SubmittedBy     string `gorm:"not null"`
	SubmittedAt     time.Time
	SubmissionNotes string `gorm:"type:text"`
	ReviewedBy      string
	ReviewedAt      *time.Time
	Feedback        string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time
}

type ContentVersionModel struct {
	ID            string `gorm:"primaryKey"`
	ContentID     string `gorm:"not null;uniqueIndex:idx_version_content_number"`
	VersionNumber int    `gorm:"not null;uniqueIndex:idx_version_content_number"`
	Title         string `gorm:"not null"`
	Description   string `gorm:"type:text"`
	FileKey       string
	ChangedBy     string    `gorm:"not null"`
	ChangeLog     string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null"`
}

type PasswordResetTokenModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"uniqueIndex;not null"`
	Token     string    `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
}
