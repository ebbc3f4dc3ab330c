package server

import (
	"blogosphere/internal/models"
	"blogosphere/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
	Status   string   `json:"status"`
	ImageURL string   `json:"imageUrl"`
}

type updatePostRequest struct {
	Title     *string   `json:"title"`
	Content   *string   `json:"content"`
	Excerpt   *string   `json:"excerpt"`
	Tags      *[]string `json:"tags"`
	Category  *string   `json:"category"`
	ImageURL  *string   `json:"imageUrl"`
	Status    *string   `json:"status"`
	Published *bool     `json:"published"`
}

// GetPosts handles GET /api/posts
// @Summary List published posts
// @Tags posts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(10)
// @Param author query int false "Author ID"
// @Param tag query string false "Tag"
// @Success 200 {object} service.PostPage
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	in := service.ListPostsInput{
		Tag:    c.Query("tag"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
		Caller: callerFrom(c),
	}
	if raw := c.Query("author"); raw != "" {
		author := c.QueryInt("author", 0)
		if author <= 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid author ID"))
		}
		id := uint(author)
		in.AuthorID = &id
	}

	page, err := s.postService.ListPosts(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, callerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	post, err := s.postService.CreatePost(c.UserContext(), callerFrom(c), service.CreatePostInput{
		Title:    req.Title,
		Content:  req.Content,
		Excerpt:  req.Excerpt,
		Tags:     req.Tags,
		Category: req.Category,
		Status:   req.Status,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	var req updatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), callerFrom(c), id, service.UpdatePostInput{
		Title:     req.Title,
		Content:   req.Content,
		Excerpt:   req.Excerpt,
		Tags:      req.Tags,
		Category:  req.Category,
		ImageURL:  req.ImageURL,
		Status:    req.Status,
		Published: req.Published,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]string
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), callerFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// RecordView handles POST /api/posts/:id/view
// @Summary Count a view
// @Description Views from the same visitor inside the dedupe window count once.
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Router /posts/{id}/view [post]
func (s *Server) RecordView(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	counted, err := s.postService.RecordView(c.UserContext(), id, callerFrom(c), c.IP())
	if err != nil {
		return respondError(c, err)
	}
	if !counted {
		return c.JSON(fiber.Map{"success": true, "message": "View already counted recently"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	res, err := s.postService.ToggleLike(c.UserContext(), id, callerFrom(c))
	if err != nil {
		return respondError(c, err)
	}

	msg := "Post unliked successfully"
	if res.Liked {
		msg = "Post liked successfully"
	}
	return c.JSON(fiber.Map{"liked": res.Liked, "likes": res.Likes, "message": msg})
}

// PublishPost handles PUT /api/posts/:id/publish
// @Summary Publish a draft
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id}/publish [put]
func (s *Server) PublishPost(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	if _, err := s.postService.PublishPost(c.UserContext(), callerFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Post published successfully"})
}

// GetMyPosts handles GET /api/posts/my-posts
// @Summary Caller's posts, drafts included
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} models.ErrorResponse
// @Router /posts/my-posts [get]
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	posts, err := s.postService.MyPosts(c.UserContext(), callerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"posts": posts}})
}

// GetMyDrafts handles GET /api/posts/my-drafts
// @Summary Caller's drafts
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} models.ErrorResponse
// @Router /posts/my-drafts [get]
func (s *Server) GetMyDrafts(c *fiber.Ctx) error {
	posts, err := s.postService.MyDrafts(c.UserContext(), callerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"posts": posts}})
}

// GetUserPosts handles GET /api/posts/user/:userId
// @Summary Posts by one author
// @Tags posts
// @Produce json
// @Param userId path int true "Author ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(10)
// @Param includeUnpublished query bool false "Include drafts (author or admin only)" default(false)
// @Success 200 {object} service.PostPage
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/user/{userId} [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, ok := paramID(c, "userId")
	if !ok {
		return nil
	}

	page, err := s.postService.UserPosts(c.UserContext(), service.UserPostsInput{
		UserID:             userID,
		Page:               c.QueryInt("page", 1),
		Limit:              c.QueryInt("limit", 10),
		IncludeUnpublished: c.QueryBool("includeUnpublished", false),
		Caller:             callerFrom(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}
