package service

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"blogosphere/internal/models"
	"blogosphere/internal/observability"
	"blogosphere/internal/repository"
	"blogosphere/internal/validation"

	"gorm.io/datatypes"
)

const (
	maxTitleLen     = 300
	maxContentLen   = 50000
	maxExcerptLen   = 500
	maxTags         = 20
	excerptRunes    = 150
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// PostServiceOptions tunes view counting and list scanning.
type PostServiceOptions struct {
	DedupeWindow time.Duration
	Retention    time.Duration
	ScanLimit    int
	Now          func() time.Time
}

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	opts     PostServiceOptions
}

type ListPostsInput struct {
	AuthorID *uint
	Tag      string
	Page     int
	Limit    int
	Caller   Caller
}

type UserPostsInput struct {
	UserID             uint
	Page               int
	Limit              int
	IncludeUnpublished bool
	Caller             Caller
}

// Pagination describes one page of an in-memory filtered result.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalPosts  int  `json:"totalPosts"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type PostPage struct {
	Posts      []*models.Post `json:"posts"`
	Pagination Pagination     `json:"pagination"`
}

type CreatePostInput struct {
	Title    string
	Content  string
	Excerpt  string
	Tags     []string
	Category string
	Status   string
	ImageURL string
}

// UpdatePostInput is a partial update. Nil fields are left unchanged.
type UpdatePostInput struct {
	Title    *string
	Content  *string
	Excerpt  *string
	Tags     *[]string
	Category *string
	ImageURL *string
	Status   *string
	// Published is the legacy boolean form of Status. Status wins when both are set.
	Published *bool
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, opts PostServiceOptions) *PostService {
	if opts.DedupeWindow <= 0 {
		opts.DedupeWindow = time.Minute
	}
	if opts.Retention < opts.DedupeWindow {
		opts.Retention = 24 * time.Hour
	}
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = 1000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PostService{postRepo: postRepo, userRepo: userRepo, opts: opts}
}

// ListPosts returns one page of published posts, newest first. Candidates are
// filtered in memory, so totals are exact only up to the scan limit.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	candidates, err := s.postRepo.ListCandidates(ctx, repository.PostFilter{AuthorID: in.AuthorID}, s.opts.ScanLimit)
	if err != nil {
		return nil, err
	}

	tag := strings.TrimSpace(in.Tag)
	visible := make([]*models.Post, 0, len(candidates))
	for _, p := range candidates {
		if !IsPublished(p) {
			continue
		}
		if tag != "" && !hasTag(p, tag) {
			continue
		}
		visible = append(visible, p)
	}

	page := paginate(visible, in.Page, in.Limit)
	if err := s.markLiked(ctx, page.Posts, in.Caller); err != nil {
		return nil, err
	}
	return page, nil
}

func hasTag(p *models.Post, tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func paginate(posts []*models.Post, page, limit int) *PostPage {
	page, limit = normalizePage(page, limit)
	total := len(posts)

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &PostPage{
		Posts: posts[start:end],
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  (total + limit - 1) / limit,
			TotalPosts:  total,
			HasNextPage: end < total,
			HasPrevPage: page > 1,
		},
	}
}

func (s *PostService) markLiked(ctx context.Context, posts []*models.Post, c Caller) error {
	if c.IsAnonymous() || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := s.postRepo.LikedPostIDs(ctx, c.UserID, ids)
	if err != nil {
		return err
	}
	set := make(map[uint]bool, len(liked))
	for _, id := range liked {
		set[id] = true
	}
	for _, p := range posts {
		p.Liked = set[p.ID]
	}
	return nil
}

func (s *PostService) GetPost(ctx context.Context, id uint, c Caller) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanRead(post, c) {
		return nil, models.NewForbiddenError("Post not accessible")
	}
	if !c.IsAnonymous() {
		liked, err := s.postRepo.IsLiked(ctx, id, c.UserID)
		if err != nil {
			return nil, err
		}
		post.Liked = liked
	}
	return post, nil
}

// VisitorKey identifies a viewer for deduplication.
func VisitorKey(c Caller, ip string) string {
	if !c.IsAnonymous() {
		return "user:" + strconv.FormatUint(uint64(c.UserID), 10)
	}
	return "ip:" + ip
}

// RecordView counts a view of post id unless the same visitor was counted
// within the dedupe window. It reports whether the view was counted.
func (s *PostService) RecordView(ctx context.Context, id uint, c Caller, ip string) (bool, error) {
	counted, err := s.postRepo.RecordView(ctx, repository.ViewRequest{
		PostID:    id,
		Visitor:   VisitorKey(c, ip),
		Now:       s.opts.Now(),
		Window:    s.opts.DedupeWindow,
		Retention: s.opts.Retention,
	})
	if err != nil {
		return false, err
	}
	if counted {
		observability.PostViews.WithLabelValues("counted").Inc()
	} else {
		observability.PostViews.WithLabelValues("deduped").Inc()
	}
	return counted, nil
}

func (s *PostService) ToggleLike(ctx context.Context, postID uint, c Caller) (repository.LikeResult, error) {
	if c.IsAnonymous() {
		return repository.LikeResult{}, models.NewUnauthorizedError("Access token required")
	}
	res, err := s.postRepo.ToggleLike(ctx, postID, c.UserID)
	if err != nil {
		return repository.LikeResult{}, err
	}
	action := "unlike"
	if res.Liked {
		action = "like"
	}
	observability.PostLikes.WithLabelValues(action).Inc()
	return res, nil
}

func (s *PostService) CreatePost(ctx context.Context, c Caller, in CreatePostInput) (*models.Post, error) {
	if c.IsAnonymous() {
		return nil, models.NewUnauthorizedError("Access token required")
	}

	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Title and content are required")
	}
	if err := checkPostText(title, in.Content, in.Excerpt); err != nil {
		return nil, err
	}

	category := in.Category
	if category == "" {
		category = models.CategoryTechnology
	}
	if !models.ValidCategory(category) {
		return nil, models.NewValidationError("Invalid category")
	}
	status := in.Status
	if status == "" {
		status = models.PostStatusDraft
	}
	if !models.ValidStatus(status) {
		return nil, models.NewValidationError("Invalid status")
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	author, err := s.userRepo.GetByID(ctx, c.UserID)
	if err != nil {
		return nil, err
	}

	excerpt := strings.TrimSpace(in.Excerpt)
	if excerpt == "" {
		excerpt = deriveExcerpt(in.Content)
	}

	now := s.opts.Now()
	post := &models.Post{
		Title:       title,
		Content:     in.Content,
		Excerpt:     excerpt,
		Tags:        tags,
		Category:    category,
		Status:      status,
		Published:   status == models.PostStatusPublished,
		AuthorID:    author.ID,
		AuthorName:  author.DisplayName(),
		AuthorEmail: author.Email,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if post.Published {
		post.PublishedAt = &now
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func checkPostText(title, content, excerpt string) error {
	if err := validation.MaxLength("title", title, maxTitleLen); err != nil {
		return models.NewValidationError("Title too long (max 300 characters)")
	}
	if err := validation.MaxLength("content", content, maxContentLen); err != nil {
		return models.NewValidationError("Content too long (max 50000 characters)")
	}
	if err := validation.MaxLength("excerpt", excerpt, maxExcerptLen); err != nil {
		return models.NewValidationError("Excerpt too long (max 500 characters)")
	}
	return nil
}

// deriveExcerpt returns the first 150 characters of content followed by "...".
func deriveExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= excerptRunes {
		return content + "..."
	}
	return string([]rune(content)[:excerptRunes]) + "..."
}

func normalizeTags(in []string) (datatypes.JSONSlice[string], error) {
	tags := datatypes.JSONSlice[string]{}
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) > maxTags {
		return nil, models.NewValidationError("Too many tags (max 20)")
	}
	return tags, nil
}

func (s *PostService) UpdatePost(ctx context.Context, c Caller, id uint, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanModify(post, c) {
		return nil, models.NewForbiddenError("Not authorized to update this post")
	}

	var columns []string
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, models.NewValidationError("Title cannot be empty")
		}
		post.Title = title
		columns = append(columns, "title")
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, models.NewValidationError("Content cannot be empty")
		}
		post.Content = *in.Content
		columns = append(columns, "content")
	}
	if in.Excerpt != nil {
		post.Excerpt = strings.TrimSpace(*in.Excerpt)
		columns = append(columns, "excerpt")
	}
	if err := checkPostText(post.Title, post.Content, post.Excerpt); err != nil {
		return nil, err
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		post.Tags = tags
		columns = append(columns, "tags")
	}
	if in.Category != nil {
		if !models.ValidCategory(*in.Category) {
			return nil, models.NewValidationError("Invalid category")
		}
		post.Category = *in.Category
		columns = append(columns, "category")
	}
	if in.ImageURL != nil {
		post.ImageURL = strings.TrimSpace(*in.ImageURL)
		columns = append(columns, "image_url")
	}

	target := ""
	if in.Published != nil {
		target = models.PostStatusDraft
		if *in.Published {
			target = models.PostStatusPublished
		}
	}
	if in.Status != nil {
		if !models.ValidStatus(*in.Status) {
			return nil, models.NewValidationError("Invalid status")
		}
		target = *in.Status
	}
	switch {
	case target == models.PostStatusDraft && post.IsPublished():
		return nil, models.NewValidationError("Published posts cannot be moved back to draft")
	case target == models.PostStatusPublished && !post.IsPublished():
		s.markPublished(post)
		columns = append(columns, "status", "published", "published_at")
	}

	if len(columns) == 0 {
		if target != "" {
			// Status already matches; nothing to write.
			return post, nil
		}
		return nil, models.NewValidationError("No valid fields to update")
	}
	if err := s.postRepo.Update(ctx, post, columns...); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) markPublished(post *models.Post) {
	now := s.opts.Now()
	post.Status = models.PostStatusPublished
	post.Published = true
	post.PublishedAt = &now
}

func (s *PostService) DeletePost(ctx context.Context, c Caller, id uint) error {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanModify(post, c) {
		return models.NewForbiddenError("Not authorized to delete this post")
	}
	return s.postRepo.Delete(ctx, id)
}

// PublishPost moves a draft to published. It fails for anyone but the author
// and for posts that are already published.
func (s *PostService) PublishPost(ctx context.Context, c Caller, id uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanPublish(post, c) {
		return nil, models.NewForbiddenError("Not authorized to publish this post")
	}
	if post.IsPublished() {
		return nil, models.NewValidationError("Post is not a draft")
	}

	s.markPublished(post)
	if err := s.postRepo.Update(ctx, post, "status", "published", "published_at"); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) MyPosts(ctx context.Context, c Caller) ([]*models.Post, error) {
	return s.authorPosts(ctx, c, "")
}

func (s *PostService) MyDrafts(ctx context.Context, c Caller) ([]*models.Post, error) {
	return s.authorPosts(ctx, c, models.PostStatusDraft)
}

func (s *PostService) authorPosts(ctx context.Context, c Caller, status string) ([]*models.Post, error) {
	if c.IsAnonymous() {
		return nil, models.NewUnauthorizedError("Access token required")
	}
	posts, err := s.postRepo.ListByAuthor(ctx, c.UserID, status)
	if err != nil {
		return nil, err
	}
	if err := s.markLiked(ctx, posts, c); err != nil {
		return nil, err
	}
	return posts, nil
}

// UserPosts lists one author's posts. Unpublished posts are included only
// when requested by that author or an admin.
func (s *PostService) UserPosts(ctx context.Context, in UserPostsInput) (*PostPage, error) {
	if _, err := s.userRepo.GetByID(ctx, in.UserID); err != nil {
		return nil, err
	}

	status := models.PostStatusPublished
	if in.IncludeUnpublished && (in.Caller.UserID == in.UserID || in.Caller.IsAdmin()) {
		status = ""
	}
	posts, err := s.postRepo.ListByAuthor(ctx, in.UserID, status)
	if err != nil {
		return nil, err
	}

	page := paginate(posts, in.Page, in.Limit)
	if err := s.markLiked(ctx, page.Posts, in.Caller); err != nil {
		return nil, err
	}
	return page, nil
}
