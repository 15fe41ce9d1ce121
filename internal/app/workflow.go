package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ecojourney/internal/util"
	"ecojourney/pkg/domain"
	"ecojourney/pkg/store"
)

// Submit moves a draft (or a rejected item being resubmitted) into review and
// notifies every reviewer.
func (a *App) Submit(submitter domain.User, contentID, notes string) (domain.Content, error) {
	content, _, err := a.store.Transition(contentID, func(c *domain.Content, w *domain.Workflow) error {
		if c.CreatorID != submitter.ID {
			return ErrForbidden
		}
		if c.Status != domain.StatusDraft && c.Status != domain.StatusRejected {
			return fmt.Errorf("%w: cannot submit content in status %s", ErrConflict, c.Status)
		}
		now := time.Now().UTC()
		c.Status = domain.StatusPending
		c.SubmittedAt = &now
		c.RejectedReason = ""
		c.UpdatedAt = now

		if w.ID == "" {
			w.ID = util.NewID()
			w.ContentID = c.ID
			w.CreatedAt = now
		}
		w.Status = domain.WorkflowPending
		w.SubmittedBy = submitter.ID
		w.SubmittedAt = now
		w.SubmissionNotes = strings.TrimSpace(notes)
		w.ReviewedBy = ""
		w.ReviewedAt = nil
		w.Feedback = ""
		w.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Content{}, transitionError(err)
	}
	a.notifyReviewers(content)
	return content, nil
}

// Review records a reviewer decision on pending content. Approved items become
// eligible for publishing; rejected items can be resubmitted; requested
// changes put the item back in draft for editing. The creator is notified.
func (a *App) Review(reviewer domain.User, contentID string, decision domain.WorkflowStatus, feedback string) (domain.Content, error) {
	if !Can(reviewer.Role, ActionContentReview) {
		return domain.Content{}, ErrForbidden
	}
	feedback = strings.TrimSpace(feedback)

	var kind domain.NotificationKind
	content, _, err := a.store.Transition(contentID, func(c *domain.Content, w *domain.Workflow) error {
		if c.Status != domain.StatusPending {
			return fmt.Errorf("%w: cannot review content in status %s", ErrConflict, c.Status)
		}
		if c.CreatorID == reviewer.ID {
			return fmt.Errorf("%w: cannot review own content", ErrForbidden)
		}
		now := time.Now().UTC()
		switch decision {
		case domain.WorkflowApproved:
			c.Status = domain.StatusApproved
			kind = domain.NotifyApproved
		case domain.WorkflowRejected:
			if feedback == "" {
				return fmt.Errorf("%w: feedback required when rejecting", ErrValidation)
			}
			c.Status = domain.StatusRejected
			c.RejectedReason = feedback
			kind = domain.NotifyRejected
		case domain.WorkflowRequestedChanges:
			if feedback == "" {
				return fmt.Errorf("%w: feedback required when requesting changes", ErrValidation)
			}
			c.Status = domain.StatusDraft
			kind = domain.NotifyChangesRequested
		default:
			return fmt.Errorf("%w: unknown review decision %q", ErrValidation, decision)
		}
		c.ReviewedBy = reviewer.ID
		c.ReviewedAt = &now
		c.UpdatedAt = now

		w.Status = decision
		w.ReviewedBy = reviewer.ID
		w.ReviewedAt = &now
		w.Feedback = feedback
		w.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Content{}, transitionError(err)
	}
	a.notify(domain.Notification{
		Kind:      kind,
		UserID:    content.CreatorID,
		ContentID: content.ID,
		Feedback:  feedback,
	})
	return content, nil
}

// Publish makes approved content live and notifies the creator.
func (a *App) Publish(publisher domain.User, contentID string) (domain.Content, error) {
	if !Can(publisher.Role, ActionContentPublish) {
		return domain.Content{}, ErrForbidden
	}
	content, _, err := a.store.Transition(contentID, func(c *domain.Content, w *domain.Workflow) error {
		if c.Status != domain.StatusApproved {
			return fmt.Errorf("%w: cannot publish content in status %s", ErrConflict, c.Status)
		}
		now := time.Now().UTC()
		c.Status = domain.StatusPublished
		c.PublishedBy = publisher.ID
		c.PublishedAt = &now
		c.UpdatedAt = now
		w.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Content{}, transitionError(err)
	}
	a.notify(domain.Notification{
		Kind:      domain.NotifyPublished,
		UserID:    content.CreatorID,
		ContentID: content.ID,
	})
	return content, nil
}

// Archive retires content permanently. Archived content cannot transition
// anywhere else.
func (a *App) Archive(actor domain.User, contentID string) (domain.Content, error) {
	if !Can(actor.Role, ActionContentArchive) {
		return domain.Content{}, ErrForbidden
	}
	content, _, err := a.store.Transition(contentID, func(c *domain.Content, w *domain.Workflow) error {
		if c.Status == domain.StatusArchived {
			return fmt.Errorf("%w: content already archived", ErrConflict)
		}
		now := time.Now().UTC()
		c.Status = domain.StatusArchived
		c.UpdatedAt = now
		if w.ID != "" {
			w.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return domain.Content{}, transitionError(err)
	}
	return content, nil
}

// PendingApprovals lists workflows awaiting review (managers and admins).
func (a *App) PendingApprovals(viewer domain.User) ([]domain.Workflow, error) {
	if !Can(viewer.Role, ActionContentReview) {
		return nil, ErrForbidden
	}
	return a.store.ListPendingWorkflows()
}

// GetWorkflow returns the approval record for one content item.
func (a *App) GetWorkflow(viewer domain.User, contentID string) (domain.Workflow, error) {
	content, ok, err := a.store.GetContent(contentID)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("fetch content: %w", err)
	}
	if !ok {
		return domain.Workflow{}, ErrNotFound
	}
	if !Can(viewer.Role, ActionContentViewAll) && content.CreatorID != viewer.ID {
		return domain.Workflow{}, ErrForbidden
	}
	workflow, ok, err := a.store.GetWorkflow(contentID)
	if err != nil {
		return domain.Workflow{}, fmt.Errorf("fetch workflow: %w", err)
	}
	if !ok {
		return domain.Workflow{}, ErrNotFound
	}
	return workflow, nil
}

// notifyReviewers fans a submission notice out to every manager and admin.
func (a *App) notifyReviewers(content domain.Content) {
	for _, role := range []domain.RoleName{domain.RoleContentManager, domain.RoleAdmin} {
		reviewers, err := a.store.ListUsersByRole(role)
		if err != nil {
			slog.Error("list reviewers", "role", role, "err", err)
			continue
		}
		for _, reviewer := range reviewers {
			if !reviewer.Active || reviewer.ID == content.CreatorID {
				continue
			}
			a.notify(domain.Notification{
				Kind:      domain.NotifySubmission,
				UserID:    reviewer.ID,
				ContentID: content.ID,
			})
		}
	}
}

func transitionError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
