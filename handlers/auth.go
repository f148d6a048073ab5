package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"chirp/apperr"
	"chirp/middleware"
	"chirp/models"
	"chirp/sanitize"
	"chirp/store"
)

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Handle   string `json:"handle" binding:"required"`
	FullName string `json:"fullName"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	handle, err := sanitize.Handle(req.Handle)
	if err != nil {
		respondError(c, "Signup", err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, "Signup", err)
		return
	}

	fullName := sanitize.Normalize(req.FullName)
	if fullName == "" {
		fullName = handle
	}
	user := &models.User{
		Handle:       handle,
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hashed),
		FullName:     fullName,
		CreatedAt:    store.Stamp(settings.Clock),
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := db.CreateUser(ctx, user); err != nil {
		respondError(c, "Signup", err)
		return
	}

	token, err := middleware.IssueToken(settings.JWTSecret, user.ID, settings.JWTTTL, time.Now())
	if err != nil {
		respondError(c, "Signup", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"token":   token,
		"userId":  user.ID,
		"handle":  user.Handle,
	})
}

func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := db.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Kind == apperr.KindNotFound {
			err = apperr.ErrInvalidCredentials
		}
		respondError(c, "Login", err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(c, "Login", apperr.ErrInvalidCredentials)
		return
	}

	token, err := middleware.IssueToken(settings.JWTSecret, user.ID, settings.JWTTTL, time.Now())
	if err != nil {
		respondError(c, "Login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"userId":  user.ID,
		"handle":  user.Handle,
	})
}
