package domain

import "time"

type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusPending   ContentStatus = "pending"
	StatusApproved  ContentStatus = "approved"
	StatusRejected  ContentStatus = "rejected"
	StatusPublished ContentStatus = "published"
	StatusArchived  ContentStatus = "archived"
)

type WorkflowStatus string

const (
	WorkflowPending          WorkflowStatus = "pending"
	WorkflowApproved         WorkflowStatus = "approved"
	WorkflowRejected         WorkflowStatus = "rejected"
	WorkflowRequestedChanges WorkflowStatus = "requested_changes"
)

type ContentType string

const (
	TypeImage    ContentType = "image"
	TypeVideo    ContentType = "video"
	TypeAudio    ContentType = "audio"
	TypeDocument ContentType = "document"
	TypeArticle  ContentType = "article"
)

type RoleName string

const (
	RoleAdmin           RoleName = "admin"
	RoleContentManager  RoleName = "content_manager"
	RoleContentProducer RoleName = "content_producer"
)

// CanReview reports whether the role may review or publish content.
func (r RoleName) CanReview() bool {
	return r == RoleAdmin || r == RoleContentManager
}

type CategoryName string

const (
	CategoryEnvironmental CategoryName = "environmental"
	CategorySocial        CategoryName = "social"
	CategoryGovernance    CategoryName = "governance"
	CategoryEconomic      CategoryName = "economic"
	CategoryOther         CategoryName = "other"
)

type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Role          RoleName   `json:"role"`
	Organization  string     `json:"organization,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Active        bool       `json:"active"`
	LoginAttempts int        `json:"-"`
	LockedUntil   *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Locked reports whether the account is currently locked out.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

type Role struct {
	Name        RoleName          `json:"name"`
	Description string            `json:"description,omitempty"`
	Permissions map[string]string `json:"permissions,omitempty"`
}

type Category struct {
	ID          string       `json:"id"`
	Name        CategoryName `json:"name"`
	Description string       `json:"description,omitempty"`
	ColorCode   string       `json:"colorCode,omitempty"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type Content struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	Type             ContentType   `json:"type"`
	CategoryID       string        `json:"categoryId,omitempty"`
	FileKey          string        `json:"-"`
	OriginalFilename string        `json:"originalFilename,omitempty"`
	SizeBytes        int64         `json:"sizeBytes"`
	ThumbnailKey     string        `json:"-"`
	CreatorID        string        `json:"creatorId"`
	Status           ContentStatus `json:"status"`
	Tags             string        `json:"tags,omitempty"`
	ViewCount        int64         `json:"viewCount"`
	SubmittedAt      *time.Time    `json:"submittedAt,omitempty"`
	ReviewedBy       string        `json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time    `json:"reviewedAt,omitempty"`
	RejectedReason   string        `json:"rejectedReason,omitempty"`
	PublishedBy      string        `json:"publishedBy,omitempty"`
	PublishedAt      *time.Time    `json:"publishedAt,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

type Workflow struct {
	ID              string         `json:"id"`
	ContentID       string         `json:"contentId"`
	Status          WorkflowStatus `json:"status"`
	SubmittedBy     string         `json:"submittedBy"`
	SubmittedAt     time.Time      `json:"submittedAt"`
	SubmissionNotes string         `json:"submissionNotes,omitempty"`
	ReviewedBy      string         `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewedAt,omitempty"`
	Feedback        string         `json:"feedback,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type ContentVersion struct {
	ID            string    `json:"id"`
	ContentID     string    `json:"contentId"`
	VersionNumber int       `json:"versionNumber"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	FileKey       string    `json:"-"`
	ChangedBy     string    `json:"changedBy"`
	ChangeLog     string    `json:"changeLog,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type PasswordResetToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
}

// Valid reports whether the token can still redeem a reset.
func (t PasswordResetToken) Valid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}

// NotificationKind identifies an outbound email template.
type NotificationKind string

const (
	NotifyWelcome          NotificationKind = "welcome"
	NotifyPasswordReset    NotificationKind = "password_reset"
	NotifySubmission       NotificationKind = "submission"
	NotifyApproved         NotificationKind = "approved"
	NotifyRejected         NotificationKind = "rejected"
	NotifyChangesRequested NotificationKind = "changes_requested"
	NotifyPublished        NotificationKind = "published"
	NotifyRoleAssigned     NotificationKind = "role_assigned"
	NotifyAccountDisabled  NotificationKind = "account_disabled"
)

// Notification is the payload carried on the outbound mail queue.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	UserID    string           `json:"userId,omitempty"`
	ContentID string           `json:"contentId,omitempty"`
	Feedback  string           `json:"feedback,omitempty"`
	Token     string           `json:"token,omitempty"`
}
