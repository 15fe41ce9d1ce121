package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"ecojourney/pkg/domain"
)

const migrateLockID int64 = 52180931

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, runs auto-migrations and seeds reference roles.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&RoleModel{},
			&CategoryModel{},
			&ContentModel{},
			&WorkflowModel{},
			&ContentVersionModel{},
			&PasswordResetTokenModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return seedRoles(tx)
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func seedRoles(tx *gorm.DB) error {
	now := time.Now().UTC()
	roles := []struct {
		name        domain.RoleName
		description string
		permissions map[string]string
	}{
		{domain.RoleAdmin, "Administrator", map[string]string{"users": "manage", "content": "manage", "workflow": "review"}},
		{domain.RoleContentManager, "Content Manager", map[string]string{"content": "read", "workflow": "review"}},
		{domain.RoleContentProducer, "Content Producer", map[string]string{"content": "create"}},
	}
	for _, role := range roles {
		perms, err := json.Marshal(role.permissions)
		if err != nil {
			return fmt.Errorf("marshal role permissions: %w", err)
		}
		model := RoleModel{
			Name:        string(role.name),
			Description: role.description,
			Permissions: perms,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&model).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role.name, err)
		}
	}
	return nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "email", "password_hash", "role", "organization", "phone",
			"active", "login_attempts", "locked_until", "updated_at",
		}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	return s.userExists("email = ?", email)
}

// HasUsername checks if username exists.
func (s *GormStore) HasUsername(username string) (bool, error) {
	return s.userExists("username = ?", username)
}

func (s *GormStore) userExists(cond string, arg any) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where(cond, arg).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	return s.getUser("email = ?", email)
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	return s.getUser("username = ?", username)
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	return s.getUser("id = ?", id)
}

func (s *GormStore) getUser(cond string, arg any) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where(cond, arg).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	return s.listUsers(nil)
}

// ListUsersByRole returns users holding a role.
func (s *GormStore) ListUsersByRole(role domain.RoleName) ([]domain.User, error) {
	return s.listUsers(map[string]any{"role": string(role)})
}

func (s *GormStore) listUsers(conds map[string]any) ([]domain.User, error) {
	var models []UserModel
	tx := s.db.Order("created_at ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// ListRoles returns the seeded reference roles.
func (s *GormStore) ListRoles() ([]domain.Role, error) {
	var models []RoleModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Role, 0, len(models))
	for _, m := range models {
		res = append(res, roleFromModel(m))
	}
	return res, nil
}

// SaveCategory stores or updates a category.
func (s *GormStore) SaveCategory(c domain.Category) error {
	model := categoryToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "color_code", "active", "updated_at"}),
	}).Create(&model).Error
}

// GetCategory retrieves a category.
func (s *GormStore) GetCategory(id string) (domain.Category, bool, error) {
	var model CategoryModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Category{}, false, nil
		}
		return domain.Category{}, false, err
	}
	return categoryFromModel(model), true, nil
}

// ListCategories returns categories ordered by name.
func (s *GormStore) ListCategories() ([]domain.Category, error) {
	var models []CategoryModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, categoryFromModel(m))
	}
	return res, nil
}

// DeleteCategory removes a category; content keeps its category id dangling-free
// by clearing the reference.
func (s *GormStore) DeleteCategory(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ContentModel{}).Where("category_id = ?", id).
			Update("category_id", "").Error; err != nil {
			return err
		}
		return tx.Delete(&CategoryModel{}, "id = ?", id).Error
	})
}

// CreateContent stores a new content record.
func (s *GormStore) CreateContent(c domain.Content) error {
	model := contentToModel(c)
	return s.db.Create(&model).Error
}

// GetContent retrieves a content record.
func (s *GormStore) GetContent(id string) (domain.Content, bool, error) {
	var model ContentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Content{}, false, nil
		}
		return domain.Content{}, false, err
	}
	return contentFromModel(model), true, nil
}

// ListContent returns content matching the filter, newest first.
func (s *GormStore) ListContent(filter ContentFilter) ([]domain.Content, error) {
	tx := s.db.Order("created_at DESC")
	if filter.CreatorID != "" {
		tx = tx.Where("creator_id = ?", filter.CreatorID)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	} else if !filter.IncludeArchived {
		tx = tx.Where("status <> ?", string(domain.StatusArchived))
	}
	if filter.CategoryID != "" {
		tx = tx.Where("category_id = ?", filter.CategoryID)
	}
	var models []ContentModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Content, 0, len(models))
	for _, m := range models {
		res = append(res, contentFromModel(m))
	}
	return res, nil
}

// DeleteContent removes content, its workflow and versions together.
func (s *GormStore) DeleteContent(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&WorkflowModel{}, "content_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ContentVersionModel{}, "content_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ContentModel{}, "id = ?", id).Error
	})
}

// IncrementViewCount bumps the view counter and returns the new value.
func (s *GormStore) IncrementViewCount(id string) (int64, error) {
	var model ContentModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ContentModel{}).Where("id = ?", id).
			Update("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
			return err
		}
		return tx.Select("view_count").First(&model, "id = ?", id).Error
	})
	if err == gorm.ErrRecordNotFound {
		return 0, ErrNotFound
	}
	return model.ViewCount, err
}

// UpdateContent persists an edit and appends its version snapshot atomically.
// The version number is assigned under the content row lock so concurrent
// edits cannot produce duplicates.
func (s *GormStore) UpdateContent(content domain.Content, version domain.ContentVersion) (domain.ContentVersion, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current ContentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "id = ?", content.ID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		var maxVersion sql.NullInt64
		if err := tx.Model(&ContentVersionModel{}).
			Where("content_id = ?", content.ID).
			Select("MAX(version_number)").
			Scan(&maxVersion).Error; err != nil {
			return err
		}
		version.VersionNumber = int(maxVersion.Int64) + 1
		model := contentToModel(content)
		if err := tx.Model(&ContentModel{}).Where("id = ?", content.ID).
			Updates(map[string]any{
				"title":             model.Title,
				"description":       model.Description,
				"category_id":       model.CategoryID,
				"file_key":          model.FileKey,
				"original_filename": model.OriginalFilename,
				"size_bytes":        model.SizeBytes,
				"thumbnail_key":     model.ThumbnailKey,
				"tags":              model.Tags,
				"updated_at":        time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
		versionModel := versionToModel(version)
		return tx.Create(&versionModel).Error
	})
	if err != nil {
		return domain.ContentVersion{}, err
	}
	return version, nil
}

// ListVersions returns versions of a content record, newest first.
func (s *GormStore) ListVersions(contentID string) ([]domain.ContentVersion, error) {
	var models []ContentVersionModel
	if err := s.db.Where("content_id = ?", contentID).
		Order("version_number DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ContentVersion, 0, len(models))
	for _, m := range models {
		res = append(res, versionFromModel(m))
	}
	return res, nil
}

// GetWorkflow returns the approval workflow linked to a content record.
func (s *GormStore) GetWorkflow(contentID string) (domain.Workflow, bool, error) {
	var model WorkflowModel
	if err := s.db.First(&model, "content_id = ?", contentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Workflow{}, false, nil
		}
		return domain.Workflow{}, false, err
	}
	return workflowFromModel(model), true, nil
}

// ListPendingWorkflows returns workflows awaiting review, oldest first.
func (s *GormStore) ListPendingWorkflows() ([]domain.Workflow, error) {
	var models []WorkflowModel
	if err := s.db.Where("status = ?", string(domain.WorkflowPending)).
		Order("submitted_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Workflow, 0, len(models))
	for _, m := range models {
		res = append(res, workflowFromModel(m))
	}
	return res, nil
}

// Transition applies a state change to a content record and its workflow in
// one transaction. The content row is locked FOR UPDATE so concurrent review
// actions on the same record serialize instead of losing updates.
func (s *GormStore) Transition(contentID string, apply func(*domain.Content, *domain.Workflow) error) (domain.Content, domain.Workflow, error) {
	var (
		content  domain.Content
		workflow domain.Workflow
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var contentModel ContentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&contentModel, "id = ?", contentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		content = contentFromModel(contentModel)

		var workflowModel WorkflowModel
		hadWorkflow := true
		if err := tx.First(&workflowModel, "content_id = ?", contentID).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			hadWorkflow = false
		}
		if hadWorkflow {
			workflow = workflowFromModel(workflowModel)
		} else {
			workflow = domain.Workflow{}
		}

		if err := apply(&content, &workflow); err != nil {
			return err
		}

		updated := contentToModel(content)
		if err := tx.Model(&ContentModel{}).Where("id = ?", contentID).
			Updates(map[string]any{
				"status":          updated.Status,
				"submitted_at":    updated.SubmittedAt,
				"reviewed_by":     updated.ReviewedBy,
				"reviewed_at":     updated.ReviewedAt,
				"rejected_reason": updated.RejectedReason,
				"published_by":    updated.PublishedBy,
				"published_at":    updated.PublishedAt,
				"updated_at":      updated.UpdatedAt,
			}).Error; err != nil {
			return err
		}
		if workflow.ID == "" {
			return nil
		}
		wfModel := workflowToModel(workflow)
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "content_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "submitted_by", "submitted_at", "submission_notes",
				"reviewed_by", "reviewed_at", "feedback", "updated_at",
			}),
		}).Create(&wfModel).Error
	})
	if err != nil {
		return domain.Content{}, domain.Workflow{}, err
	}
	return content, workflow, nil
}

// SavePasswordResetToken replaces any previous token for the user.
func (s *GormStore) SavePasswordResetToken(t domain.PasswordResetToken) error {
	model := resetTokenToModel(t)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&PasswordResetTokenModel{}, "user_id = ?", t.UserID).Error; err != nil {
			return err
		}
		return tx.Create(&model).Error
	})
}

// GetPasswordResetToken looks up a reset token by its value.
func (s *GormStore) GetPasswordResetToken(token string) (domain.PasswordResetToken, bool, error) {
	var model PasswordResetTokenModel
	if err := s.db.First(&model, "token = ?", token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.PasswordResetToken{}, false, nil
		}
		return domain.PasswordResetToken{}, false, err
	}
	return resetTokenFromModel(model), true, nil
}

// MarkResetTokenUsed consumes the token; returns false when already used.
func (s *GormStore) MarkResetTokenUsed(id string) (bool, error) {
	res := s.db.Model(&PasswordResetTokenModel{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		Role:          string(u.Role),
		Organization:  u.Organization,
		Phone:         u.Phone,
		Active:        u.Active,
		LoginAttempts: u.LoginAttempts,
		LockedUntil:   u.LockedUntil,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:            m.ID,
		Username:      m.Username,
		Email:         m.Email,
		PasswordHash:  m.PasswordHash,
		Role:          domain.RoleName(m.Role),
		Organization:  m.Organization,
		Phone:         m.Phone,
		Active:        m.Active,
		LoginAttempts: m.LoginAttempts,
		LockedUntil:   m.LockedUntil,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func roleFromModel(m RoleModel) domain.Role {
	var perms map[string]string
	if len(m.Permissions) > 0 {
		_ = json.Unmarshal(m.Permissions, &perms)
	}
	return domain.Role{
		Name:        domain.RoleName(m.Name),
		Description: m.Description,
		Permissions: perms,
	}
}

func categoryToModel(c domain.Category) CategoryModel {
	return CategoryModel{
		ID:          c.ID,
		Name:        string(c.Name),
		Description: c.Description,
		ColorCode:   c.ColorCode,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func categoryFromModel(m CategoryModel) domain.Category {
	return domain.Category{
		ID:          m.ID,
		Name:        domain.CategoryName(m.Name),
		Description: m.Description,
		ColorCode:   m.ColorCode,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func contentToModel(c domain.Content) ContentModel {
	return ContentModel{
		ID:               c.ID,
		Title:            c.Title,
		Description:      c.Description,
		ContentType:      string(c.Type),
		CategoryID:       c.CategoryID,
		FileKey:          c.FileKey,
		OriginalFilename: c.OriginalFilename,
		SizeBytes:        c.SizeBytes,
		ThumbnailKey:     c.ThumbnailKey,
		CreatorID:        c.CreatorID,
		Status:           string(c.Status),
		Tags:             c.Tags,
		ViewCount:        c.ViewCount,
		SubmittedAt:      c.SubmittedAt,
		ReviewedBy:       c.ReviewedBy,
		ReviewedAt:       c.ReviewedAt,
		RejectedReason:   c.RejectedReason,
		PublishedBy:      c.PublishedBy,
		PublishedAt:      c.PublishedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func contentFromModel(m ContentModel) domain.Content {
	return domain.Content{
		ID:               m.ID,
		Title:            m.Title,
		Description:      m.Description,
		Type:             domain.ContentType(m.ContentType),
		CategoryID:       m.CategoryID,
		FileKey:          m.FileKey,
		OriginalFilename: m.OriginalFilename,
		SizeBytes:        m.SizeBytes,
		ThumbnailKey:     m.ThumbnailKey,
		CreatorID:        m.CreatorID,
		Status:           domain.ContentStatus(m.Status),
		Tags:             m.Tags,
		ViewCount:        m.ViewCount,
		SubmittedAt:      m.SubmittedAt,
		ReviewedBy:       m.ReviewedBy,
		ReviewedAt:       m.ReviewedAt,
		RejectedReason:   m.RejectedReason,
		PublishedBy:      m.PublishedBy,
		PublishedAt:      m.PublishedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func workflowToModel(w domain.Workflow) WorkflowModel {
	return WorkflowModel{
		ID:              w.ID,
		ContentID:       w.ContentID,
		Status:          string(w.Status),
		SubmittedBy:     w.SubmittedBy,
		SubmittedAt:     w.SubmittedAt,
		SubmissionNotes: w.SubmissionNotes,
		ReviewedBy:      w.ReviewedBy,
		ReviewedAt:      w.ReviewedAt,
		Feedback:        w.Feedback,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

func workflowFromModel(m WorkflowModel) domain.Workflow {
	return domain.Workflow{
		ID:              m.ID,
		ContentID:       m.ContentID,
		Status:          domain.WorkflowStatus(m.Status),
		SubmittedBy:     m.SubmittedBy,
		SubmittedAt:     m.SubmittedAt,
		SubmissionNotes: m.SubmissionNotes,
		ReviewedBy:      m.ReviewedBy,
		ReviewedAt:      m.ReviewedAt,
		Feedback:        m.Feedback,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func versionToModel(v domain.ContentVersion) ContentVersionModel {
	return ContentVersionModel{
		ID:            v.ID,
		ContentID:     v.ContentID,
		VersionNumber: v.VersionNumber,
		Title:         v.Title,
		Description:   v.Description,
		FileKey:       v.FileKey,
		ChangedBy:     v.ChangedBy,
		ChangeLog:     v.ChangeLog,
		CreatedAt:     v.CreatedAt,
	}
}

func versionFromModel(m ContentVersionModel) domain.ContentVersion {
	return domain.ContentVersion{
		ID:            m.ID,
		ContentID:     m.ContentID,
		VersionNumber: m.VersionNumber,
		Title:         m.Title,
		Description:   m.Description,
		FileKey:       m.FileKey,
		ChangedBy:     m.ChangedBy,
		ChangeLog:     m.ChangeLog,
		CreatedAt:     m.CreatedAt,
	}
}

func resetTokenToModel(t domain.PasswordResetToken) PasswordResetTokenModel {
	return PasswordResetTokenModel{
		ID:        t.ID,
		UserID:    t.UserID,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		Used:      t.Used,
		CreatedAt: t.CreatedAt,
	}
}

func resetTokenFromModel(m PasswordResetTokenModel) domain.PasswordResetToken {
	return domain.PasswordResetToken{
		ID:        m.ID,
		UserID:    m.UserID,
		Token:     m.Token,
		ExpiresAt: m.ExpiresAt,
		Used:      m.Used,
		CreatedAt: m.CreatedAt,
	}
}
