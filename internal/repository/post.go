package repository

import (
	"context"
	"errors"
	"time"

	"blogosphere/internal/cache"
	"blogosphere/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows ListCandidates.
type PostFilter struct {
	AuthorID *uint
}

// ViewRequest describes one attempt to count a view.
type ViewRequest struct {
	PostID  uint
	Visitor string
	Now     time.Time
	// Window is the dedupe interval: a visitor counted less than Window ago is not counted again.
	Window time.Duration
	// Retention bounds how long visitor entries are kept on the post.
	Retention time.Duration
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	Liked bool
	Likes int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// Update writes the named columns of post plus updated_at.
	Update(ctx context.Context, post *models.Post, columns ...string) error
	Delete(ctx context.Context, id uint) error
	// ListCandidates returns at most limit posts, newest first, regardless of
	// visibility. Callers filter for what the viewer may see.
	ListCandidates(ctx context.Context, filter PostFilter, limit int) ([]*models.Post, error)
	// ListByAuthor returns the author's posts newest first. status "" means any.
	ListByAuthor(ctx context.Context, authorID uint, status string) ([]*models.Post, error)
	RecordView(ctx context.Context, req ViewRequest) (bool, error)
	ToggleLike(ctx context.Context, postID, userID uint) (LikeResult, error)
	IsLiked(ctx context.Context, postID, userID uint) (bool, error)
	// LikedPostIDs returns the subset of postIDs the user has liked.
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func postErr(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Post", id)
	}
	return translate(err, "Post already exists")
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.Tags == nil {
		post.Tags = datatypes.JSONSlice[string]{}
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return translate(err, "Post already exists")
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
			return postErr(err, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post, columns ...string) error {
	post.UpdatedAt = time.Now()
	cols := append(append([]string{}, columns...), "updated_at")

	res := r.db.WithContext(ctx).Model(post).Select(cols).Updates(post)
	if res.Error != nil {
		return postErr(res.Error, post.ID)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return postErr(res.Error, id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) ListCandidates(ctx context.Context, filter PostFilter, limit int) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if filter.AuthorID != nil {
		q = q.Where("author_id = ?", *filter.AuthorID)
	}

	var posts []*models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, translate(err, "")
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, status string) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).Where("author_id = ?", authorID)
	switch status {
	case models.PostStatusDraft:
		q = q.Where("status = ? AND published = ?", models.PostStatusDraft, false)
	case models.PostStatusPublished:
		q = q.Where("status = ? OR published = ?", models.PostStatusPublished, true)
	}

	var posts []*models.Post
	if err := q.Order("created_at DESC").Order("id DESC").Find(&posts).Error; err != nil {
		return nil, translate(err, "")
	}
	return posts, nil
}

// RecordView counts a view unless req.Visitor was counted within req.Window.
// A plain read answers the common duplicate case; a counted view re-reads the
// row under lock, re-checks, and writes the counter and pruned visitor map in
// one transaction.
func (r *postRepository) RecordView(ctx context.Context, req ViewRequest) (bool, error) {
	var current models.Post
	if err := r.db.WithContext(ctx).Select("id", "recent_views").First(&current, req.PostID).Error; err != nil {
		return false, postErr(err, req.PostID)
	}
	if viewedWithin(current.ViewLog(), req) {
		return false, nil
	}

	counted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "recent_views").
			First(&post, req.PostID).Error; err != nil {
			return err
		}

		views := post.ViewLog()
		if viewedWithin(views, req) {
			return nil
		}

		kept := pruneViews(views, req.Now, req.Retention)
		kept[req.Visitor] = req.Now.UnixMilli()

		if err := tx.Model(&models.Post{}).
			Where("id = ?", req.PostID).
			UpdateColumns(map[string]any{
				"views":        gorm.Expr("views + ?", 1),
				"recent_views": datatypes.NewJSONType(kept),
			}).Error; err != nil {
			return err
		}
		counted = true
		return nil
	})
	if err != nil {
		return false, postErr(err, req.PostID)
	}

	if counted {
		cache.InvalidatePost(ctx, req.PostID)
	}
	return counted, nil
}

func viewedWithin(views models.ViewLog, req ViewRequest) bool {
	last, ok := views[req.Visitor]
	return ok && req.Now.UnixMilli()-last < req.Window.Milliseconds()
}

// pruneViews returns the entries of views younger than retention.
func pruneViews(views models.ViewLog, now time.Time, retention time.Duration) models.ViewLog {
	cutoff := now.Add(-retention).UnixMilli()
	kept := make(models.ViewLog, len(views)+1)
	for visitor, at := range views {
		if at > cutoff {
			kept[visitor] = at
		}
	}
	return kept
}

// ToggleLike flips the caller's like on the post. The like row and the
// counter change in one transaction with the post row locked, and the counter
// never drops below zero.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uint) (LikeResult, error) {
	var result LikeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "likes").
			First(&post, postID).Error; err != nil {
			return err
		}

		removed := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if removed.Error != nil {
			return removed.Error
		}

		counter := gorm.Expr("likes + 1")
		if removed.RowsAffected > 0 {
			counter = gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END")
		} else {
			if err := tx.Create(&models.Like{UserID: userID, PostID: postID}).Error; err != nil {
				return err
			}
			result.Liked = true
		}

		if err := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("likes", counter).Error; err != nil {
			return err
		}

		var updated models.Post
		if err := tx.Select("id", "likes").First(&updated, postID).Error; err != nil {
			return err
		}
		result.Likes = updated.Likes
		return nil
	})
	if err != nil {
		return LikeResult{}, postErr(err, postID)
	}

	cache.InvalidatePost(ctx, postID)
	return result, nil
}

func (r *postRepository) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, translate(err, "")
	}
	return count > 0, nil
}

func (r *postRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, translate(err, "")
	}
	return ids, nil
}
