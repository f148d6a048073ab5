package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type CreatePostRequest struct {
	// Text is left untyped: non-string values normalize to empty.
	Text         any    `json:"text"`
	ParentPostID string `json:"parent_post_id"`
}

type CommentRequest struct {
	Text any `json:"text"`
}

func GetFeed(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := posts.Feed(ctx, c.Query("cursor"), viewerID(c), queryLimit(c))
	if err != nil {
		respondError(c, "GetFeed", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func GetUserPosts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := posts.Timeline(ctx, c.Param("handle"), c.Query("cursor"), viewerID(c), queryLimit(c))
	if err != nil {
		respondError(c, "GetUserPosts", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func GetPost(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	item, err := posts.Post(ctx, c.Param("id"), viewerID(c))
	if err != nil {
		respondError(c, "GetPost", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	item, err := posts.CreatePost(ctx, viewerID(c), req.Text, req.ParentPostID)
	if err != nil {
		respondError(c, "CreatePost", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func GetComments(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := posts.Comments(ctx, c.Param("id"), c.Query("cursor"), queryLimit(c))
	if err != nil {
		respondError(c, "GetComments", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid JSON body")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	comment, replies, err := posts.AddComment(ctx, viewerID(c), c.Param("id"), req.Text)
	if err != nil {
		respondError(c, "AddComment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"comment":     comment,
		"reply_count": replies,
	})
}
