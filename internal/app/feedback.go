package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
	"github.com/okian/perfboard/pkg/logger"
	"github.com/okian/perfboard/pkg/metrics"
)

// SubmitFeedback stores a review of an existing employee. When key is set,
// a repeated submission with the same key returns the first result and
// duplicate=true instead of writing again.
func (s *Service) SubmitFeedback(ctx context.Context, fb model.Feedback, key string) (saved model.Feedback, duplicate bool, err error) {
	c, err := s.deps()
	if err != nil {
		return model.Feedback{}, false, err
	}

	if key != "" {
		if id, seen := c.deduper.SeenAndRecord(ctx, key); seen {
			metrics.RecordFeedbackDuplicate()
			s.logger.Debug(ctx, "duplicate feedback submission", logger.String("key", key))
			if id == "" {
				return model.Feedback{}, true, ErrDuplicateSubmission
			}
			prior, err := s.getFeedback(ctx, c, id)
			return prior, true, err
		}
		defer func() {
			if err != nil {
				c.deduper.Unrecord(ctx, key)
			}
		}()
	}

	if _, err := s.GetEmployee(ctx, fb.EmployeeID); err != nil {
		return model.Feedback{}, false, err
	}
	fb.ID = ""
	fb.CreatedAt = time.Now().UTC()
	doc, err := encodeFeedback(fb)
	if err != nil {
		return model.Feedback{}, false, err
	}
	id, err := c.store.Push(ctx, model.CollectionFeedbacks, doc)
	if err != nil {
		return model.Feedback{}, false, storeErr("submit feedback", err)
	}
	fb.ID = id
	if key != "" {
		c.deduper.Complete(ctx, key, id)
	}

	metrics.RecordFeedbackSubmitted()
	s.logger.Info(ctx, "feedback submitted",
		logger.String("id", id),
		logger.String("employeeID", fb.EmployeeID),
		logger.Int("rating", fb.Rating),
	)
	return fb, false, nil
}

func (s *Service) getFeedback(ctx context.Context, c *components, id string) (model.Feedback, error) {
	doc, err := c.store.Get(ctx, model.CollectionFeedbacks, id)
	if err != nil {
		return model.Feedback{}, storeErr("get feedback", err)
	}
	return decodeFeedback(doc.ID, doc.Data)
}

// FeedbackFor returns an employee's feedback, newest first.
func (s *Service) FeedbackFor(ctx context.Context, employeeID string) ([]model.Feedback, error) {
	c, err := s.deps()
	if err != nil {
		return nil, err
	}
	docs, err := c.query.Fetch(ctx, model.CollectionFeedbacks, repository.Filter{Field: model.FieldEmployeeID, Value: employeeID})
	if err != nil {
		return nil, fmt.Errorf("feedback for %s: %w", employeeID, err)
	}
	out := decodeDocs(ctx, s.logger, model.CollectionFeedbacks, docs, decodeFeedback)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateFeedback edits the content, rating or category of a review. The
// reviewed employee and creation time cannot change.
func (s *Service) UpdateFeedback(ctx context.Context, id string, fb model.Feedback) (model.Feedback, error) {
	c, err := s.deps()
	if err != nil {
		return model.Feedback{}, err
	}
	current, err := s.getFeedback(ctx, c, id)
	if err != nil {
		return model.Feedback{}, err
	}
	fb.ID = id
	fb.EmployeeID = current.EmployeeID
	fb.CreatedAt = current.CreatedAt
	if fb.ReviewerID == "" {
		fb.ReviewerID, fb.ReviewerName = current.ReviewerID, current.ReviewerName
	}

	doc, err := encodeFeedback(fb)
	if err != nil {
		return model.Feedback{}, err
	}
	if err := c.store.Set(ctx, model.CollectionFeedbacks, id, doc); err != nil {
		return model.Feedback{}, storeErr("update feedback", err)
	}
	return fb, nil
}

// DeleteFeedback removes a review.
func (s *Service) DeleteFeedback(ctx context.Context, id string) error {
	c, err := s.deps()
	if err != nil {
		return err
	}
	return storeErr("delete feedback", c.store.Delete(ctx, model.CollectionFeedbacks, id))
}
