package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miglopesdev98/library-service/internal/services"
)

// Machine-readable error codes carried in every failure body.
const (
	codeValidation        = "VALIDATION_ERROR"
	codeBookNotFound      = "BOOK_NOT_FOUND"
	codeUserNotFound      = "USER_NOT_FOUND"
	codeCheckoutNotFound  = "CHECKOUT_NOT_FOUND"
	codeNoCopies          = "NO_COPIES_AVAILABLE"
	codeAlreadyCheckedOut = "ALREADY_CHECKED_OUT"
	codeAlreadyReturned   = "ALREADY_RETURNED"
	codeDuplicateISBN     = "DUPLICATE_ISBN"
	codeEmailTaken        = "EMAIL_TAKEN"
	codeBadCredentials    = "INVALID_CREDENTIALS"
	codeAuthRequired      = "AUTHORIZATION_REQUIRED"
	codeInvalidToken      = "INVALID_TOKEN"
	codeAdminRequired     = "ADMIN_REQUIRED"
	codeInventoryDrift    = "INVENTORY_DRIFT"
	codeInternal          = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

// respondServiceError maps service-layer errors onto HTTP statuses and codes.
// Unrecognized errors become an opaque 500; internals are never leaked.
func respondServiceError(c *gin.Context, err error) {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorBody{
			Code:    codeValidation,
			Message: ve.Message,
			Field:   ve.Field,
		}})
		return
	}

	switch {
	case errors.Is(err, services.ErrBookNotFound):
		respondError(c, http.StatusNotFound, codeBookNotFound, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		respondError(c, http.StatusNotFound, codeUserNotFound, err.Error())
	case errors.Is(err, services.ErrCheckoutNotFound):
		respondError(c, http.StatusNotFound, codeCheckoutNotFound, err.Error())
	case errors.Is(err, services.ErrNoCopiesAvailable):
		respondError(c, http.StatusBadRequest, codeNoCopies, err.Error())
	case errors.Is(err, services.ErrAlreadyCheckedOut):
		respondError(c, http.StatusBadRequest, codeAlreadyCheckedOut, err.Error())
	case errors.Is(err, services.ErrAlreadyReturned):
		respondError(c, http.StatusBadRequest, codeAlreadyReturned, err.Error())
	case errors.Is(err, services.ErrDuplicateISBN):
		respondError(c, http.StatusConflict, codeDuplicateISBN, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		respondError(c, http.StatusBadRequest, codeEmailTaken, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, codeBadCredentials, err.Error())
	case errors.Is(err, services.ErrInvalidToken):
		respondError(c, http.StatusUnauthorized, codeInvalidToken, err.Error())
	case errors.Is(err, services.ErrInventoryDrift):
		respondError(c, http.StatusInternalServerError, codeInventoryDrift, err.Error())
	default:
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}
