package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"ecojourney/internal/util"
	"ecojourney/pkg/domain"
	"ecojourney/pkg/storage"
	"ecojourney/pkg/store"
)

const downloadURLTTL = 15 * time.Minute

var allowedExtensions = map[domain.ContentType]map[string]bool{
	domain.TypeImage:    {".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true},
	domain.TypeVideo:    {".mp4": true, ".webm": true, ".mov": true, ".avi": true, ".mkv": true},
	domain.TypeAudio:    {".mp3": true, ".wav": true, ".ogg": true, ".flac": true, ".m4a": true},
	domain.TypeDocument: {".pdf": true, ".doc": true, ".docx": true, ".ppt": true, ".pptx": true, ".xls": true, ".xlsx": true},
	domain.TypeArticle:  {".md": true, ".txt": true, ".html": true},
}

var thumbnailExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Upload carries one multipart file part.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// CreateContentInput carries the fields for a new content item.
type CreateContentInput struct {
	Title       string
	Description string
	Type        domain.ContentType
	CategoryID  string
	Tags        string
	File        *Upload
	Thumbnail   *Upload
}

// CreateContent stores a new content item as a draft owned by the caller.
func (a *App) CreateContent(ctx context.Context, creator domain.User, in CreateContentInput) (domain.Content, error) {
	if !Can(creator.Role, ActionContentCreate) {
		return domain.Content{}, ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Content{}, fmt.Errorf("%w: title required", ErrValidation)
	}
	if _, ok := allowedExtensions[in.Type]; !ok {
		return domain.Content{}, fmt.Errorf("%w: unknown content type %q", ErrValidation, in.Type)
	}
	if in.File == nil {
		return domain.Content{}, fmt.Errorf("%w: file required", ErrValidation)
	}
	if err := a.checkUpload(in.Type, in.File); err != nil {
		return domain.Content{}, err
	}
	if in.CategoryID != "" {
		if _, ok, err := a.store.GetCategory(in.CategoryID); err != nil {
			return domain.Content{}, fmt.Errorf("fetch category: %w", err)
		} else if !ok {
			return domain.Content{}, fmt.Errorf("%w: category not found", ErrValidation)
		}
	}

	id := util.NewID()
	fileKey := storage.FileKey(id, in.File.Filename)
	if err := a.objects.Put(ctx, fileKey, in.File.Reader, in.File.Size, in.File.ContentType); err != nil {
		return domain.Content{}, fmt.Errorf("store file: %w", err)
	}
	thumbnailKey := ""
	if in.Thumbnail != nil {
		if err := a.checkThumbnail(in.Thumbnail); err != nil {
			return domain.Content{}, err
		}
		thumbnailKey = storage.ThumbnailKey(id, in.Thumbnail.Filename)
		if err := a.objects.Put(ctx, thumbnailKey, in.Thumbnail.Reader, in.Thumbnail.Size, in.Thumbnail.ContentType); err != nil {
			return domain.Content{}, fmt.Errorf("store thumbnail: %w", err)
		}
	}

	now := time.Now().UTC()
	content := domain.Content{
		ID:               id,
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		Type:             in.Type,
		CategoryID:       in.CategoryID,
		FileKey:          fileKey,
		OriginalFilename: filepath.Base(in.File.Filename),
		SizeBytes:        in.File.Size,
		ThumbnailKey:     thumbnailKey,
		CreatorID:        creator.ID,
		Status:           domain.StatusDraft,
		Tags:             strings.TrimSpace(in.Tags),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.store.CreateContent(content); err != nil {
		return domain.Content{}, fmt.Errorf("save content: %w", err)
	}
	return content, nil
}

func (a *App) checkUpload(contentType domain.ContentType, up *Upload) error {
	if up.Size <= 0 {
		return fmt.Errorf("%w: empty file", ErrValidation)
	}
	if up.Size > a.maxUploadSize {
		return fmt.Errorf("%w: file exceeds maximum size of %d bytes", ErrValidation, a.maxUploadSize)
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !allowedExtensions[contentType][ext] {
		return fmt.Errorf("%w: file extension %q not allowed for %s content", ErrValidation, ext, contentType)
	}
	return nil
}

func (a *App) checkThumbnail(up *Upload) error {
	if up.Size <= 0 {
		return fmt.Errorf("%w: empty thumbnail", ErrValidation)
	}
	if up.Size > a.maxUploadSize {
		return fmt.Errorf("%w: thumbnail exceeds maximum size of %d bytes", ErrValidation, a.maxUploadSize)
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if !thumbnailExtensions[ext] {
		return fmt.Errorf("%w: thumbnail extension %q not allowed", ErrValidation, ext)
	}
	return nil
}

// GetContent returns one content item the caller may see. Viewing a published
// item counts a view.
func (a *App) GetContent(viewer domain.User, id string) (domain.Content, error) {
	content, ok, err := a.store.GetContent(id)
	if err != nil {
		return domain.Content{}, fmt.Errorf("fetch content: %w", err)
	}
	if !ok {
		return domain.Content{}, ErrNotFound
	}
	if !a.canView(viewer, content) {
		return domain.Content{}, ErrForbidden
	}
	if content.Status == domain.StatusPublished && content.CreatorID != viewer.ID {
		if count, err := a.store.IncrementViewCount(id); err == nil {
			content.ViewCount = count
		}
	}
	return content, nil
}

func (a *App) canView(viewer domain.User, content domain.Content) bool {
	if Can(viewer.Role, ActionContentViewAll) {
		return true
	}
	return content.CreatorID == viewer.ID || content.Status == domain.StatusPublished
}

// ListContent lists items visible to the caller. Producers see their own
// items plus anything published; managers and admins see everything.
func (a *App) ListContent(viewer domain.User, filter store.ContentFilter) ([]domain.Content, error) {
	if !Can(viewer.Role, ActionContentViewAll) {
		filter.CreatorID = viewer.ID
	}
	return a.store.ListContent(filter)
}

// UpdateContentInput carries editable fields. Nil pointers leave the field
// unchanged.
type UpdateContentInput struct {
	Title       *string
	Description *string
	CategoryID  *string
	Tags        *string
	File        *Upload
	ChangeLog   string
}

// UpdateContent edits a draft owned by the caller and appends a version
// snapshot of the previous state.
func (a *App) UpdateContent(ctx context.Context, editor domain.User, id string, in UpdateContentInput) (domain.Content, error) {
	content, ok, err := a.store.GetContent(id)
	if err != nil {
		return domain.Content{}, fmt.Errorf("fetch content: %w", err)
	}
	if !ok {
		return domain.Content{}, ErrNotFound
	}
	if content.CreatorID != editor.ID && editor.Role != domain.RoleAdmin {
		return domain.Content{}, ErrForbidden
	}
	if content.Status != domain.StatusDraft {
		return domain.Content{}, fmt.Errorf("%w: only drafts can be edited, content is %s", ErrConflict, content.Status)
	}

	version := domain.ContentVersion{
		ID:          util.NewID(),
		ContentID:   content.ID,
		Title:       content.Title,
		Description: content.Description,
		FileKey:     content.FileKey,
		ChangedBy:   editor.ID,
		ChangeLog:   strings.TrimSpace(in.ChangeLog),
		CreatedAt:   time.Now().UTC(),
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return domain.Content{}, fmt.Errorf("%w: title required", ErrValidation)
		}
		content.Title = title
	}
	if in.Description != nil {
		content.Description = strings.TrimSpace(*in.Description)
	}
	if in.CategoryID != nil {
		if *in.CategoryID != "" {
			if _, ok, err := a.store.GetCategory(*in.CategoryID); err != nil {
				return domain.Content{}, fmt.Errorf("fetch category: %w", err)
			} else if !ok {
				return domain.Content{}, fmt.Errorf("%w: category not found", ErrValidation)
			}
		}
		content.CategoryID = *in.CategoryID
	}
	if in.Tags != nil {
		content.Tags = strings.TrimSpace(*in.Tags)
	}
	if in.File != nil {
		if err := a.checkUpload(content.Type, in.File); err != nil {
			return domain.Content{}, err
		}
		fileKey := storage.FileKey(content.ID, in.File.Filename)
		if err := a.objects.Put(ctx, fileKey, in.File.Reader, in.File.Size, in.File.ContentType); err != nil {
			return domain.Content{}, fmt.Errorf("store file: %w", err)
		}
		content.FileKey = fileKey
		content.OriginalFilename = filepath.Base(in.File.Filename)
		content.SizeBytes = in.File.Size
	}
	content.UpdatedAt = time.Now().UTC()

	if _, err := a.store.UpdateContent(content, version); err != nil {
		return domain.Content{}, fmt.Errorf("update content: %w", err)
	}
	return content, nil
}

// DeleteContent removes a content item, its versions and its stored files.
// Creators may delete their own drafts; admins may delete anything.
func (a *App) DeleteContent(ctx context.Context, actor domain.User, id string) error {
	content, ok, err := a.store.GetContent(id)
	if err != nil {
		return fmt.Errorf("fetch content: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if actor.Role != domain.RoleAdmin {
		if content.CreatorID != actor.ID {
			return ErrForbidden
		}
		if content.Status != domain.StatusDraft {
			return fmt.Errorf("%w: only drafts can be deleted", ErrConflict)
		}
	}
	if err := a.store.DeleteContent(id); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	if content.FileKey != "" {
		if err := a.objects.Delete(ctx, content.FileKey); err != nil {
			return fmt.Errorf("delete file: %w", err)
		}
	}
	if content.ThumbnailKey != "" {
		if err := a.objects.Delete(ctx, content.ThumbnailKey); err != nil {
			return fmt.Errorf("delete thumbnail: %w", err)
		}
	}
	return nil
}

// ListVersions returns a content item's version history, newest first.
func (a *App) ListVersions(viewer domain.User, contentID string) ([]domain.ContentVersion, error) {
	content, ok, err := a.store.GetContent(contentID)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	if !Can(viewer.Role, ActionContentViewAll) && content.CreatorID != viewer.ID {
		return nil, ErrForbidden
	}
	return a.store.ListVersions(contentID)
}

// DownloadURL returns a short-lived presigned URL for the content file.
func (a *App) DownloadURL(ctx context.Context, viewer domain.User, contentID string) (string, error) {
	content, ok, err := a.store.GetContent(contentID)
	if err != nil {
		return "", fmt.Errorf("fetch content: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	if !a.canView(viewer, content) {
		return "", ErrForbidden
	}
	url, err := a.objects.PresignGet(ctx, content.FileKey, downloadURLTTL)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

// CategoryInput carries category fields.
type CategoryInput struct {
	Name        domain.CategoryName
	Description string
	ColorCode   string
	Active      *bool
}

// CreateCategory adds a new category (managers and admins).
func (a *App) CreateCategory(actor domain.User, in CategoryInput) (domain.Category, error) {
	if !Can(actor.Role, ActionCategoryManage) {
		return domain.Category{}, ErrForbidden
	}
	if err := validCategoryName(in.Name); err != nil {
		return domain.Category{}, err
	}
	existing, err := a.store.ListCategories()
	if err != nil {
		return domain.Category{}, fmt.Errorf("list categories: %w", err)
	}
	for _, cat := range existing {
		if cat.Name == in.Name {
			return domain.Category{}, fmt.Errorf("%w: category %q already exists", ErrConflict, in.Name)
		}
	}
	now := time.Now().UTC()
	category := domain.Category{
		ID:          util.NewID(),
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		ColorCode:   strings.TrimSpace(in.ColorCode),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Active != nil {
		category.Active = *in.Active
	}
	if err := a.store.SaveCategory(category); err != nil {
		return domain.Category{}, fmt.Errorf("save category: %w", err)
	}
	return category, nil
}

// UpdateCategory edits an existing category (managers and admins).
func (a *App) UpdateCategory(actor domain.User, id string, in CategoryInput) (domain.Category, error) {
	if !Can(actor.Role, ActionCategoryManage) {
		return domain.Category{}, ErrForbidden
	}
	category, ok, err := a.store.GetCategory(id)
	if err != nil {
		return domain.Category{}, fmt.Errorf("fetch category: %w", err)
	}
	if !ok {
		return domain.Category{}, ErrNotFound
	}
	if in.Name != "" && in.Name != category.Name {
		if err := validCategoryName(in.Name); err != nil {
			return domain.Category{}, err
		}
		existing, err := a.store.ListCategories()
		if err != nil {
			return domain.Category{}, fmt.Errorf("list categories: %w", err)
		}
		for _, cat := range existing {
			if cat.Name == in.Name && cat.ID != id {
				return domain.Category{}, fmt.Errorf("%w: category %q already exists", ErrConflict, in.Name)
			}
		}
		category.Name = in.Name
	}
	if in.Description != "" {
		category.Description = strings.TrimSpace(in.Description)
	}
	if in.ColorCode != "" {
		category.ColorCode = strings.TrimSpace(in.ColorCode)
	}
	if in.Active != nil {
		category.Active = *in.Active
	}
	category.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveCategory(category); err != nil {
		return domain.Category{}, fmt.Errorf("save category: %w", err)
	}
	return category, nil
}

// DeleteCategory removes a category; content keeps existing but loses the
// category reference.
func (a *App) DeleteCategory(actor domain.User, id string) error {
	if !Can(actor.Role, ActionCategoryManage) {
		return ErrForbidden
	}
	if _, ok, err := a.store.GetCategory(id); err != nil {
		return fmt.Errorf("fetch category: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	return a.store.DeleteCategory(id)
}

// ListCategories returns all categories.
func (a *App) ListCategories() ([]domain.Category, error) {
	return a.store.ListCategories()
}

func validCategoryName(name domain.CategoryName) error {
	switch name {
	case domain.CategoryEnvironmental, domain.CategorySocial, domain.CategoryGovernance,
		domain.CategoryEconomic, domain.CategoryOther:
		return nil
	default:
		return fmt.Errorf("%w: unknown category name %q", ErrValidation, name)
	}
}
