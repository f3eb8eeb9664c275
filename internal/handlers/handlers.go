package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/miglopesdev98/library-service/internal/services"
)

// LibraryHandler carries the services behind the HTTP surface.
type LibraryHandler struct {
	books   services.BookService
	library services.LibraryService
	auth    services.AuthService
}

// RegisterRoutes mounts the API under /api. Catalog reads are public, catalog
// writes and the audit sweep are admin-gated, library operations require any
// authenticated user.
func RegisterRoutes(r *gin.Engine, books services.BookService, library services.LibraryService, auth services.AuthService) {
	h := &LibraryHandler{books: books, library: library, auth: auth}

	authed := requireAuth(auth, services.ScopeAccess)
	admin := requireAdmin()

	bookRoutes := r.Group("/api/books")
	{
		bookRoutes.GET("", h.listBooks)
		bookRoutes.GET("/:id", h.getBook)
		bookRoutes.POST("", authed, admin, h.createBook)
		bookRoutes.PUT("/:id", authed, admin, h.updateBook)
		bookRoutes.DELETE("/:id", authed, admin, h.deleteBook)
	}

	libraryRoutes := r.Group("/api/library", authed)
	{
		libraryRoutes.POST("/checkout", h.checkoutBook)
		libraryRoutes.POST("/return/:id", h.returnCheckout)
		libraryRoutes.GET("/user/:id", h.listUserCheckouts)
		libraryRoutes.GET("/overdue", h.listOverdue)
		libraryRoutes.GET("/audit", admin, h.auditInventory)
	}

	authRoutes := r.Group("/api/auth")
	{
		authRoutes.POST("/register", h.register)
		authRoutes.POST("/login", h.login)
		authRoutes.GET("/me", authed, h.currentUser)
		authRoutes.POST("/refresh", requireAuth(auth, services.ScopeRefresh), h.refresh)
	}
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

func (h *LibraryHandler) listBooks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "0"))
	search := c.Query("search")

	result, err := h.books.List(page, perPage, search)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LibraryHandler) getBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	book, err := h.books.Get(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

type createBookRequest struct {
	Title         string  `json:"title" binding:"required"`
	Author        string  `json:"author" binding:"required"`
	ISBN          string  `json:"isbn" binding:"required"`
	Publisher     *string `json:"publisher"`
	Description   *string `json:"description"`
	PublishedDate *string `json:"published_date"`
	TotalCopies   *int    `json:"total_copies"`
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	published, ok := parseDate(c, req.PublishedDate)
	if !ok {
		return
	}

	// A missing total_copies means a single copy, per catalog convention.
	totalCopies := 1
	if req.TotalCopies != nil {
		totalCopies = *req.TotalCopies
	}

	book, err := h.books.Create(services.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Publisher:     req.Publisher,
		Description:   req.Description,
		PublishedDate: published,
		TotalCopies:   totalCopies,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

type updateBookRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	ISBN          *string `json:"isbn"`
	Publisher     *string `json:"publisher"`
	Description   *string `json:"description"`
	PublishedDate *string `json:"published_date"`
	TotalCopies   *int    `json:"total_copies"`
}

func (h *LibraryHandler) updateBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	published, ok := parseDate(c, req.PublishedDate)
	if !ok {
		return
	}

	book, err := h.books.Update(id, services.BookUpdate{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Publisher:     req.Publisher,
		Description:   req.Description,
		PublishedDate: published,
		TotalCopies:   req.TotalCopies,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *LibraryHandler) deleteBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.books.Delete(id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ─── Library ──────────────────────────────────────────────────────────────────

type checkoutRequest struct {
	BookID  string     `json:"book_id" binding:"required,uuid"`
	UserID  string     `json:"user_id" binding:"required,uuid"`
	DueDate *time.Time `json:"due_date"`
}

func (h *LibraryHandler) checkoutBook(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	bookID, _ := uuid.Parse(req.BookID)
	userID, _ := uuid.Parse(req.UserID)

	checkout, err := h.library.CheckoutBook(bookID, userID, req.DueDate)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Book checked out successfully",
		"checkout_id": checkout.ID,
		"due_date":    checkout.DueDate,
	})
}

func (h *LibraryHandler) returnCheckout(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	checkout, err := h.library.ReturnCheckout(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Book returned successfully",
		"checkout_id": checkout.ID,
		"return_date": checkout.ReturnDate,
	})
}

func (h *LibraryHandler) listUserCheckouts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	activeOnly := strings.EqualFold(c.DefaultQuery("active", "true"), "true")

	checkouts, err := h.library.ListUserCheckouts(id, activeOnly)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkouts)
}

func (h *LibraryHandler) listOverdue(c *gin.Context) {
	overdue, err := h.library.ListOverdue()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, overdue)
}

func (h *LibraryHandler) auditInventory(c *gin.Context) {
	report, err := h.library.AuditInventory()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// parseDate parses an optional YYYY-MM-DD value, writing a 400 itself on a
// malformed input.
func parseDate(c *gin.Context, value *string) (*time.Time, bool) {
	if value == nil || *value == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", *value)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeValidation, "published_date must be YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}
