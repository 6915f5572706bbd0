package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"notebook-api/internal/cache"
	"notebook-api/internal/database"
	"notebook-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateNoteRequest represents the request payload for creating a note
type CreateNoteRequest struct {
	Title      string                `json:"title" binding:"required"`
	Body       string                `json:"body"`
	Tags       string                `json:"tags"`
	Pinned     bool                  `json:"pinned"`
	Visibility models.NoteVisibility `json:"visibility"`
}

// UpdateNoteRequest represents the request payload for updating a note
type UpdateNoteRequest struct {
	Title      *string                `json:"title"`
	Body       *string                `json:"body"`
	Tags       *string                `json:"tags"`
	Pinned     *bool                  `json:"pinned"`
	Visibility *models.NoteVisibility `json:"visibility"`
}

// UpdateNotePinRequest represents a minimal request to toggle the pin flag
type UpdateNotePinRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

// NotePage is one page of the notes listing. Pages are what the query
// cache stores: the count and the page slice together, so a cached page
// never mixes results from different generations of the table.
type NotePage struct {
	Notes []models.Note `json:"notes"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// NoteHandler serves the notes CRUD surface. Pages caches list pages keyed
// by user and query shape; every write clears it, since inserts and deletes
// shift page boundaries for all pages at once.
type NoteHandler struct {
	Pages cache.Cache[NotePage]
}

/*
*
GetNotes handles GET /api/notes
Returns the authenticated user's notes, paginated.
Query params: page (default 1), limit (default 5), sort (asc|desc on
created_at, default desc), tag (optional substring filter).
*/
func (h *NoteHandler) GetNotes(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return
	}

	pageStr := c.DefaultQuery("page", "1")
	limitStr := c.DefaultQuery("limit", "5")
	sortParam := strings.ToLower(c.DefaultQuery("sort", "desc"))
	tag := c.Query("tag")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	order := "created_at desc"
	if sortParam == "asc" {
		order = "created_at asc"
	}

	cacheKey := fmt.Sprintf("notes:%s:%s:%d:%d:%s", userID, tag, page, limit, order)
	if cached, ok := h.Pages.Get(cacheKey); ok {
		respondNotePage(c, cached, true)
		return
	}

	offset := (page - 1) * limit

	db := database.GetDB()
	query := db.Model(&models.Note{}).Where("user_id = ?", userID)
	if tag != "" {
		query = query.Where("tags LIKE ?", "%"+tag+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count notes"})
		return
	}

	var notes []models.Note
	if err := query.Order(order).Limit(limit).Offset(offset).Find(&notes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notes"})
		return
	}

	result := NotePage{Notes: notes, Total: total, Page: page, Limit: limit}
	h.Pages.Set(cacheKey, result, 0)
	respondNotePage(c, result, false)
}

func respondNotePage(c *gin.Context, page NotePage, cached bool) {
	c.JSON(http.StatusOK, gin.H{
		"notes":  page.Notes,
		"total":  page.Total,
		"page":   page.Page,
		"limit":  page.Limit,
		"cached": cached,
	})
}

// GetNoteByID handles GET /api/notes/:id
func (h *NoteHandler) GetNoteByID(c *gin.Context) {
	userID := c.GetString("user_id")
	noteID := c.Param("id")

	var note models.Note
	err := database.GetDB().First(&note, "id = ? AND user_id = ?", noteID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch note"})
		return
	}

	c.JSON(http.StatusOK, note)
}

// CreateNote handles POST /api/notes
func (h *NoteHandler) CreateNote(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return
	}

	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Title is required."})
		return
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}

	note := models.Note{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Body:       req.Body,
		Tags:       req.Tags,
		Pinned:     req.Pinned,
		Visibility: visibility,
		UserID:     userID,
	}
	if err := database.GetDB().Create(&note).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create note"})
		return
	}

	// Inserts shift page boundaries for every cached page of this table.
	h.Pages.Clear()

	c.JSON(http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/:id
func (h *NoteHandler) UpdateNote(c *gin.Context) {
	userID := c.GetString("user_id")
	noteID := c.Param("id")

	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	db := database.GetDB()
	var note models.Note
	err := db.First(&note, "id = ? AND user_id = ?", noteID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch note"})
		return
	}

	if req.Title != nil {
		note.Title = *req.Title
	}
	if req.Body != nil {
		note.Body = *req.Body
	}
	if req.Tags != nil {
		note.Tags = *req.Tags
	}
	if req.Pinned != nil {
		note.Pinned = *req.Pinned
	}
	if req.Visibility != nil {
		note.Visibility = *req.Visibility
	}

	if err := db.Save(&note).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update note"})
		return
	}

	h.Pages.Clear()

	c.JSON(http.StatusOK, note)
}

// UpdateNotePin handles PATCH /api/notes/:id/pin
func (h *NoteHandler) UpdateNotePin(c *gin.Context) {
	userID := c.GetString("user_id")
	noteID := c.Param("id")

	var req UpdateNotePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Pinned flag is required."})
		return
	}

	db := database.GetDB()
	var note models.Note
	err := db.First(&note, "id = ? AND user_id = ?", noteID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch note"})
		return
	}

	note.Pinned = *req.Pinned
	if err := db.Save(&note).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update note"})
		return
	}

	h.Pages.Clear()

	c.JSON(http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/:id
func (h *NoteHandler) DeleteNote(c *gin.Context) {
	userID := c.GetString("user_id")
	noteID := c.Param("id")

	db := database.GetDB()
	result := db.Delete(&models.Note{}, "id = ? AND user_id = ?", noteID, userID)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete note"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	h.Pages.Clear()

	c.JSON(http.StatusOK, gin.H{"message": "Note deleted successfully"})
}
