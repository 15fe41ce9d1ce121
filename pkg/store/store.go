package store

import (
	"errors"

	"ecojourney/pkg/domain"
)

// ErrNotFound is returned by transactional helpers when the target row is missing.
var ErrNotFound = errors.New("record not found")

// ContentFilter narrows content listings.
type ContentFilter struct {
	CreatorID       string
	Status          domain.ContentStatus
	CategoryID      string
	IncludeArchived bool
}

// Store defines persistence operations for users, categories, content,
// versions, workflows and password reset tokens.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	HasUsername(username string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	ListUsersByRole(role domain.RoleName) ([]domain.User, error)

	// roles
	ListRoles() ([]domain.Role, error)

	// categories
	SaveCategory(domain.Category) error
	GetCategory(id string) (domain.Category, bool, error)
	ListCategories() ([]domain.Category, error)
	DeleteCategory(id string) error

	// content
	CreateContent(domain.Content) error
	GetContent(id string) (domain.Content, bool, error)
	ListContent(filter ContentFilter) ([]domain.Content, error)
	DeleteContent(id string) error
	IncrementViewCount(id string) (int64, error)

	// UpdateContent persists the edited record and its new version snapshot
	// in a single transaction. The version number is assigned inside the
	// transaction so numbers stay unique and strictly increasing.
	UpdateContent(content domain.Content, version domain.ContentVersion) (domain.ContentVersion, error)
	ListVersions(contentID string) ([]domain.ContentVersion, error)

	// workflow
	GetWorkflow(contentID string) (domain.Workflow, bool, error)
	ListPendingWorkflows() ([]domain.Workflow, error)

	// Transition loads the content row (and its workflow, if any) under a
	// per-content lock, applies the state change, and commits both records
	// together. A workflow with empty ID is passed when none exists yet;
	// apply may populate it to create one. Returning an error from apply
	// rolls the whole transition back.
	Transition(contentID string, apply func(*domain.Content, *domain.Workflow) error) (domain.Content, domain.Workflow, error)

	// password reset tokens
	SavePasswordResetToken(domain.PasswordResetToken) error
	GetPasswordResetToken(token string) (domain.PasswordResetToken, bool, error)
	// MarkResetTokenUsed flips used=false to true and reports whether this
	// call won the flip, making tokens single-use under concurrent confirms.
	MarkResetTokenUsed(id string) (bool, error)
}

// SessionStore persists bearer session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
