package server

import (
	"blogosphere/internal/models"
	"blogosphere/internal/service"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Username  *string `json:"username"`
	Profile   *struct {
		Bio      *string `json:"bio"`
		Avatar   *string `json:"avatar"`
		Location *string `json:"location"`
		Website  *string `json:"website"`
	} `json:"profile"`
	Settings *struct {
		EmailNotifications *bool `json:"emailNotifications"`
		PublicProfile      *bool `json:"publicProfile"`
	} `json:"settings"`
}

func (r updateProfileRequest) input() service.UpdateProfileInput {
	in := service.UpdateProfileInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Username:  r.Username,
	}
	if r.Profile != nil {
		in.Bio = r.Profile.Bio
		in.Avatar = r.Profile.Avatar
		in.Location = r.Profile.Location
		in.Website = r.Profile.Website
	}
	if r.Settings != nil {
		in.EmailNotifications = r.Settings.EmailNotifications
		in.PublicProfile = r.Settings.PublicProfile
	}
	return in
}

// Register handles POST /api/users/register
// @Summary Register a user
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string,firstName=string,lastName=string,username=string} true "Registration request"
// @Success 201 {object} object{success=bool,message=string,data=object{user=models.User}}
// @Failure 400 {object} models.ErrorResponse
// @Router /users/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User registered successfully",
		"data":    fiber.Map{"user": user},
	})
}

// Login handles POST /api/users/login
// @Summary Log in
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login request"
// @Success 200 {object} object{success=bool,message=string,data=service.AuthResult}
// @Failure 401 {object} models.ErrorResponse
// @Router /users/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and password are required"))
	}

	result, err := s.userService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"data":    result,
	})
}

// GetProfile handles GET /api/users/profile
// @Summary Current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,data=object{user=models.User}}
// @Router /users/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), callerFrom(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"user": user}})
}

// UpdateProfile handles PUT /api/users/profile
// @Summary Update the current user's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string,data=object{user=models.User}}
// @Router /users/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), callerFrom(c).UserID, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"data":    fiber.Map{"user": user},
	})
}

// ChangePassword handles PUT /api/users/change-password
// @Summary Change password
// @Tags users
// @Accept json
// @Security BearerAuth
// @Param request body object{oldPassword=string,newPassword=string} true "Password change"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /users/change-password [put]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Old and new passwords are required"))
	}

	if err := s.userService.ChangePassword(c.UserContext(), callerFrom(c).UserID, req.OldPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Password changed successfully"})
}

// GetUser handles GET /api/users/:id
// @Summary Public profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,data=object{user=models.PublicUser}}
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return nil
	}

	user, err := s.userService.GetPublicUser(c.UserContext(), id, callerFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"user": user}})
}

// GetAllUsers handles GET /api/users (admin only)
// @Summary List users (admin only)
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Param role query string false "Role filter"
// @Param search query string false "Matches name, username or email"
// @Param isActive query bool false "Active filter"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	in := service.ListUsersInput{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
		Role:   c.Query("role"),
		Search: c.Query("search"),
	}
	if raw := c.Query("isActive"); raw != "" {
		active := c.QueryBool("isActive")
		in.IsActive = &active
	}

	users, total, err := s.userService.ListUsers(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}
