package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"blogosphere/internal/models"
	"blogosphere/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newPostService(postRepo *postRepoStub, userRepo *userRepoStub) *PostService {
	return NewPostService(postRepo, userRepo, PostServiceOptions{
		DedupeWindow: time.Minute,
		Retention:    24 * time.Hour,
		ScanLimit:    1000,
		Now:          func() time.Time { return fixedNow },
	})
}

func publishedPost(id, author uint, tags ...string) *models.Post {
	return &models.Post{ID: id, AuthorID: author, Status: models.PostStatusPublished, Tags: tags}
}

func TestPostService_ListPosts(t *testing.T) {
	t.Parallel()

	candidates := []*models.Post{
		publishedPost(6, 1, "go"),
		{ID: 5, AuthorID: 1, Status: models.PostStatusDraft, Tags: []string{"go"}},
		publishedPost(4, 2),
		{ID: 3, AuthorID: 2, Status: models.PostStatusDraft, Published: true, Tags: []string{"go"}},
		publishedPost(2, 1, "rust"),
		publishedPost(1, 1, "go"),
	}

	repo := noopPostRepo()
	repo.listCandidatesFn = func(_ context.Context, f repository.PostFilter, limit int) ([]*models.Post, error) {
		assert.Equal(t, 1000, limit)
		if f.AuthorID == nil {
			return candidates, nil
		}
		var out []*models.Post
		for _, p := range candidates {
			if p.AuthorID == *f.AuthorID {
				out = append(out, p)
			}
		}
		return out, nil
	}
	svc := newPostService(repo, noopUserRepo())
	ctx := context.Background()

	ids := func(page *PostPage) []uint {
		out := make([]uint, len(page.Posts))
		for i, p := range page.Posts {
			out[i] = p.ID
		}
		return out
	}

	t.Run("Drafts Excluded", func(t *testing.T) {
		page, err := svc.ListPosts(ctx, ListPostsInput{})
		require.NoError(t, err)
		assert.Equal(t, []uint{6, 4, 3, 2, 1}, ids(page))
		assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 1, TotalPosts: 5}, page.Pagination)
	})

	t.Run("Paginates Retained Set", func(t *testing.T) {
		page, err := svc.ListPosts(ctx, ListPostsInput{Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []uint{3, 2}, ids(page))
		assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 3, TotalPosts: 5, HasNextPage: true, HasPrevPage: true}, page.Pagination)
	})

	t.Run("Page Past End", func(t *testing.T) {
		page, err := svc.ListPosts(ctx, ListPostsInput{Page: 9, Limit: 2})
		require.NoError(t, err)
		assert.Empty(t, page.Posts)
		assert.False(t, page.Pagination.HasNextPage)
		assert.True(t, page.Pagination.HasPrevPage)
	})

	t.Run("Tag And Author", func(t *testing.T) {
		author := uint(1)
		page, err := svc.ListPosts(ctx, ListPostsInput{AuthorID: &author, Tag: "go"})
		require.NoError(t, err)
		assert.Equal(t, []uint{6, 1}, ids(page))
	})

	t.Run("Limit Capped", func(t *testing.T) {
		page, err := svc.ListPosts(ctx, ListPostsInput{Limit: 1000})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Pagination.TotalPages)
	})
}

func TestPostService_ListPosts_MarksLiked(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.listCandidatesFn = func(_ context.Context, _ repository.PostFilter, _ int) ([]*models.Post, error) {
		return []*models.Post{publishedPost(2, 1), publishedPost(1, 1)}, nil
	}
	repo.likedPostIDsFn = func(_ context.Context, userID uint, postIDs []uint) ([]uint, error) {
		assert.Equal(t, uint(9), userID)
		assert.Equal(t, []uint{2, 1}, postIDs)
		return []uint{1}, nil
	}

	page, err := newPostService(repo, noopUserRepo()).
		ListPosts(context.Background(), ListPostsInput{Caller: Caller{UserID: 9}})
	require.NoError(t, err)
	assert.False(t, page.Posts[0].Liked)
	assert.True(t, page.Posts[1].Liked)
}

func TestPostService_GetPost(t *testing.T) {
	t.Parallel()

	draft := func() *models.Post { return &models.Post{ID: 1, AuthorID: 7, Status: models.PostStatusDraft} }
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		if id != 1 {
			return nil, models.NewNotFoundError("Post", id)
		}
		return draft(), nil
	}
	svc := newPostService(repo, noopUserRepo())
	ctx := context.Background()

	_, err := svc.GetPost(ctx, 1, Caller{})
	assertForbiddenError(t, err)

	_, err = svc.GetPost(ctx, 1, Caller{UserID: 8, Role: models.RoleUser})
	assertForbiddenError(t, err)

	post, err := svc.GetPost(ctx, 1, Caller{UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, uint(7), post.AuthorID)

	_, err = svc.GetPost(ctx, 1, Caller{UserID: 99, Role: models.RoleAdmin})
	assert.NoError(t, err)

	_, err = svc.GetPost(ctx, 2, Caller{})
	assertAppError(t, err, models.CodeNotFound)
}

func TestPostService_RecordView(t *testing.T) {
	t.Parallel()

	var got []repository.ViewRequest
	repo := noopPostRepo()
	repo.recordViewFn = func(_ context.Context, req repository.ViewRequest) (bool, error) {
		got = append(got, req)
		return len(got) == 1, nil
	}
	svc := newPostService(repo, noopUserRepo())
	ctx := context.Background()

	counted, err := svc.RecordView(ctx, 3, Caller{UserID: 12}, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, counted)

	counted, err = svc.RecordView(ctx, 3, Caller{}, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, counted)

	require.Len(t, got, 2)
	assert.Equal(t, "user:12", got[0].Visitor)
	assert.Equal(t, "ip:10.0.0.1", got[1].Visitor)
	assert.Equal(t, fixedNow, got[0].Now)
	assert.Equal(t, time.Minute, got[0].Window)
	assert.Equal(t, 24*time.Hour, got[0].Retention)
}

func TestPostService_ToggleLike_RequiresCaller(t *testing.T) {
	t.Parallel()
	_, err := newPostService(noopPostRepo(), noopUserRepo()).ToggleLike(context.Background(), 1, Caller{})
	assertUnauthorizedError(t, err)
}

func TestPostService_CreatePost(t *testing.T) {
	t.Parallel()

	userRepo := noopUserRepo()
	userRepo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}, nil
	}
	var created *models.Post
	repo := noopPostRepo()
	repo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 10
		created = p
		return nil
	}
	svc := newPostService(repo, userRepo)
	ctx := context.Background()
	caller := Caller{UserID: 4}

	t.Run("Draft Defaults", func(t *testing.T) {
		content := strings.Repeat("x", 200)
		post, err := svc.CreatePost(ctx, caller, CreatePostInput{Title: "  T  ", Content: content, Tags: []string{"go", " go ", ""}})
		require.NoError(t, err)
		assert.Same(t, created, post)
		assert.Equal(t, "T", post.Title)
		assert.Equal(t, models.CategoryTechnology, post.Category)
		assert.Equal(t, models.PostStatusDraft, post.Status)
		assert.False(t, post.Published)
		assert.Nil(t, post.PublishedAt)
		assert.Equal(t, strings.Repeat("x", 150)+"...", post.Excerpt)
		assert.Equal(t, []string{"go"}, []string(post.Tags))
		assert.Equal(t, "Ada Lovelace", post.AuthorName)
		assert.Equal(t, "ada@example.com", post.AuthorEmail)
		assert.Equal(t, uint(4), post.AuthorID)
	})

	t.Run("Published Sets PublishedAt", func(t *testing.T) {
		post, err := svc.CreatePost(ctx, caller, CreatePostInput{
			Title: "T", Content: "C", Excerpt: "short", Category: models.CategoryAI, Status: models.PostStatusPublished,
		})
		require.NoError(t, err)
		assert.True(t, post.Published)
		require.NotNil(t, post.PublishedAt)
		assert.Equal(t, fixedNow, *post.PublishedAt)
		assert.Equal(t, "short", post.Excerpt)
		assert.NotNil(t, post.Tags)
	})

	invalid := []struct {
		name string
		in   CreatePostInput
	}{
		{"Missing Title", CreatePostInput{Content: "C"}},
		{"Missing Content", CreatePostInput{Title: "T", Content: "  "}},
		{"Bad Category", CreatePostInput{Title: "T", Content: "C", Category: "sports"}},
		{"Bad Status", CreatePostInput{Title: "T", Content: "C", Status: "archived"}},
		{"Title Too Long", CreatePostInput{Title: strings.Repeat("t", 301), Content: "C"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, caller, tt.in)
			assertValidationError(t, err)
		})
	}

	t.Run("Anonymous", func(t *testing.T) {
		_, err := svc.CreatePost(ctx, Caller{}, CreatePostInput{Title: "T", Content: "C"})
		assertUnauthorizedError(t, err)
	})
}

func TestDeriveExcerpt(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short...", deriveExcerpt("short"))
	assert.Equal(t, strings.Repeat("é", 150)+"...", deriveExcerpt(strings.Repeat("é", 151)))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestPostService_UpdatePost(t *testing.T) {
	t.Parallel()

	newRepo := func(post *models.Post, columns *[]string) *postRepoStub {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
			cp := *post
			return &cp, nil
		}
		repo.updateFn = func(_ context.Context, _ *models.Post, cols ...string) error {
			*columns = cols
			return nil
		}
		return repo
	}
	ctx := context.Background()
	author := Caller{UserID: 1}

	t.Run("Partial Fields", func(t *testing.T) {
		var cols []string
		svc := newPostService(newRepo(&models.Post{ID: 1, AuthorID: 1, Title: "Old", Content: "C", Status: models.PostStatusDraft}, &cols), noopUserRepo())

		post, err := svc.UpdatePost(ctx, author, 1, UpdatePostInput{Title: strPtr(" New "), Category: strPtr(models.CategoryBusiness)})
		require.NoError(t, err)
		assert.Equal(t, "New", post.Title)
		assert.Equal(t, models.CategoryBusiness, post.Category)
		assert.Equal(t, []string{"title", "category"}, cols)
	})

	t.Run("Draft To Published Via Legacy Flag", func(t *testing.T) {
		var cols []string
		svc := newPostService(newRepo(&models.Post{ID: 1, AuthorID: 1, Title: "T", Content: "C", Status: models.PostStatusDraft}, &cols), noopUserRepo())

		post, err := svc.UpdatePost(ctx, author, 1, UpdatePostInput{Published: boolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusPublished, post.Status)
		require.NotNil(t, post.PublishedAt)
		assert.Equal(t, []string{"status", "published", "published_at"}, cols)
	})

	t.Run("No Unpublish", func(t *testing.T) {
		var cols []string
		svc := newPostService(newRepo(&models.Post{ID: 1, AuthorID: 1, Title: "T", Content: "C", Status: models.PostStatusPublished}, &cols), noopUserRepo())

		_, err := svc.UpdatePost(ctx, author, 1, UpdatePostInput{Status: strPtr(models.PostStatusDraft)})
		assertValidationError(t, err)
		_, err = svc.UpdatePost(ctx, author, 1, UpdatePostInput{Published: boolPtr(false)})
		assertValidationError(t, err)
		assert.Nil(t, cols)
	})

	t.Run("Status Already Matches", func(t *testing.T) {
		var cols []string
		published := &models.Post{ID: 1, AuthorID: 1, Title: "T", Content: "C", Status: models.PostStatusPublished, Published: true}
		svc := newPostService(newRepo(published, &cols), noopUserRepo())

		post, err := svc.UpdatePost(ctx, author, 1, UpdatePostInput{Published: boolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusPublished, post.Status)
		assert.Nil(t, cols)

		draft := &models.Post{ID: 2, AuthorID: 1, Title: "T", Content: "C", Status: models.PostStatusDraft}
		svc = newPostService(newRepo(draft, &cols), noopUserRepo())
		post, err = svc.UpdatePost(ctx, author, 2, UpdatePostInput{Published: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusDraft, post.Status)
		assert.Nil(t, post.PublishedAt)
		assert.Nil(t, cols)
	})

	t.Run("Admin May Update", func(t *testing.T) {
		var cols []string
		svc := newPostService(newRepo(&models.Post{ID: 1, AuthorID: 1, Title: "T", Content: "C"}, &cols), noopUserRepo())
		_, err := svc.UpdatePost(ctx, Caller{UserID: 2, Role: models.RoleAdmin}, 1, UpdatePostInput{Content: strPtr("new")})
		assert.NoError(t, err)
	})

	t.Run("Stranger Forbidden", func(t *testing.T) {
		var cols []string
		svc := newPostService(newRepo(&models.Post{ID: 1, AuthorID: 1, Title: "T", Content: "C"}, &cols), noopUserRepo())
		_, err := svc.UpdatePost(ctx, Caller{UserID: 2}, 1, UpdatePostInput{Content: strPtr("new")})
		assertForbiddenError(t, err)
	})

	t.Run("Empty Patch", func(t *testing.T) {
		var cols []string
		svc := newPostService(newRepo(&models.Post{ID: 1, AuthorID: 1, Title: "T", Content: "C"}, &cols), noopUserRepo())
		_, err := svc.UpdatePost(ctx, author, 1, UpdatePostInput{})
		assertValidationError(t, err)
	})
}

func TestPostService_DeletePost(t *testing.T) {
	t.Parallel()

	deleted := 0
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1}, nil
	}
	repo.deleteFn = func(_ context.Context, _ uint) error {
		deleted++
		return nil
	}
	svc := newPostService(repo, noopUserRepo())
	ctx := context.Background()

	assertForbiddenError(t, svc.DeletePost(ctx, Caller{UserID: 2}, 1))
	assert.NoError(t, svc.DeletePost(ctx, Caller{UserID: 1}, 1))
	assert.NoError(t, svc.DeletePost(ctx, Caller{UserID: 3, Role: models.RoleAdmin}, 1))
	assert.Equal(t, 2, deleted)
}

func TestPostService_PublishPost(t *testing.T) {
	t.Parallel()

	stored := &models.Post{ID: 1, AuthorID: 1, Status: models.PostStatusDraft}
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, _ uint) (*models.Post, error) {
		cp := *stored
		return &cp, nil
	}
	repo.updateFn = func(_ context.Context, p *models.Post, _ ...string) error {
		stored = p
		return nil
	}
	svc := newPostService(repo, noopUserRepo())
	ctx := context.Background()

	_, err := svc.PublishPost(ctx, Caller{UserID: 5, Role: models.RoleAdmin}, 1)
	assertForbiddenError(t, err)

	post, err := svc.PublishPost(ctx, Caller{UserID: 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, post.Status)
	assert.Equal(t, fixedNow, *post.PublishedAt)

	_, err = svc.PublishPost(ctx, Caller{UserID: 1}, 1)
	assertValidationError(t, err)
	assert.Contains(t, err.Error(), "Post is not a draft")
}

func TestPostService_AuthorLists(t *testing.T) {
	t.Parallel()

	var statuses []string
	repo := noopPostRepo()
	repo.listByAuthorFn = func(_ context.Context, authorID uint, status string) ([]*models.Post, error) {
		statuses = append(statuses, status)
		return []*models.Post{{ID: 1, AuthorID: authorID}}, nil
	}
	svc := newPostService(repo, noopUserRepo())
	ctx := context.Background()

	_, err := svc.MyPosts(ctx, Caller{})
	assertUnauthorizedError(t, err)

	_, err = svc.MyPosts(ctx, Caller{UserID: 1})
	require.NoError(t, err)
	_, err = svc.MyDrafts(ctx, Caller{UserID: 1})
	require.NoError(t, err)

	_, err = svc.UserPosts(ctx, UserPostsInput{UserID: 1, IncludeUnpublished: true, Caller: Caller{UserID: 2}})
	require.NoError(t, err)
	_, err = svc.UserPosts(ctx, UserPostsInput{UserID: 1, IncludeUnpublished: true, Caller: Caller{UserID: 1}})
	require.NoError(t, err)
	_, err = svc.UserPosts(ctx, UserPostsInput{UserID: 1, IncludeUnpublished: true, Caller: Caller{UserID: 3, Role: models.RoleAdmin}})
	require.NoError(t, err)

	assert.Equal(t, []string{"", models.PostStatusDraft, models.PostStatusPublished, "", ""}, statuses)
}

func TestPostService_UserPosts_UnknownUser(t *testing.T) {
	t.Parallel()

	userRepo := noopUserRepo()
	userRepo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return nil, models.NewNotFoundError("User", id)
	}
	_, err := newPostService(noopPostRepo(), userRepo).UserPosts(context.Background(), UserPostsInput{UserID: 9})
	assertAppError(t, err, models.CodeNotFound)
}
