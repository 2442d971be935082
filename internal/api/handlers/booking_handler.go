package handlers

import (
	"errors"
	"net/http"
	"time"

	"studio-booking/internal/api/middleware"
	domain "studio-booking/internal/domain/booking"
	serviceInterfaces "studio-booking/internal/interfaces/service"
	"studio-booking/internal/service"
	"studio-booking/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// BookingHandler handles booking-related HTTP requests
type BookingHandler struct {
	bookingService serviceInterfaces.BookingService
}

func NewBookingHandler(bookingService serviceInterfaces.BookingService) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
	}
}

// Book handles POST /api/v1/classes/:class_id/book
func (h *BookingHandler) Book(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIResponse{
			Success: false,
			Message: "Missing caller identity",
		})
		return
	}

	classID, err := uuid.Parse(c.Param("class_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid class ID format",
		})
		return
	}

	req := &service.BookRequest{
		ClassID:        classID,
		UserID:         userID,
		IdempotencyKey: c.GetString(middleware.IdempotencyKeyKey),
	}

	if err := validator.ValidateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  validator.FormatValidationError(err),
		})
		return
	}

	response, err := h.bookingService.Book(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "Booking failed")
		return
	}

	message := "Booking confirmed"
	if response.Status == domain.StatusWaitlisted {
		message = "Class full, placed on waitlist"
	}

	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Message: message,
		Data:    response,
	})
}

// Cancel handles DELETE /api/v1/bookings/:booking_id
func (h *BookingHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIResponse{
			Success: false,
			Message: "Missing caller identity",
		})
		return
	}

	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid booking ID format",
		})
		return
	}

	result, err := h.bookingService.Cancel(c.Request.Context(), bookingID, userID)
	if err != nil {
		h.writeError(c, err, "Cancellation failed")
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Booking canceled successfully",
		Data:    result,
	})
}

// ListBookings handles GET /api/v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, APIResponse{
			Success: false,
			Message: "Missing caller identity",
		})
		return
	}

	filters, err := parseListFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	bookings, err := h.bookingService.List(c.Request.Context(), userID, filters)
	if err != nil {
		h.writeError(c, err, "Failed to retrieve bookings")
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Bookings retrieved successfully",
		Data:    map[string]interface{}{"bookings": bookings},
	})
}

// GetAvailability handles GET /api/v1/classes/:class_id/availability
func (h *BookingHandler) GetAvailability(c *gin.Context) {
	classID, err := uuid.Parse(c.Param("class_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Invalid class ID format",
		})
		return
	}

	availability, err := h.bookingService.GetAvailability(c.Request.Context(), classID)
	if err != nil {
		h.writeError(c, err, "Failed to retrieve availability")
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Availability retrieved successfully",
		Data:    availability,
	})
}

// ListUpcomingClasses handles GET /api/v1/classes/upcoming
func (h *BookingHandler) ListUpcomingClasses(c *gin.Context) {
	classes, err := h.bookingService.ListUpcomingClasses(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to retrieve upcoming classes")
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: "Upcoming classes retrieved successfully",
		Data:    map[string]interface{}{"classes": classes},
	})
}

func parseListFilters(c *gin.Context) (domain.ListFilters, error) {
	var filters domain.ListFilters

	if raw := c.Query("status"); raw != "" {
		status := domain.BookingStatus(raw)
		switch status {
		case domain.StatusConfirmed, domain.StatusWaitlisted, domain.StatusCanceled:
			filters.Status = &status
		default:
			return filters, errors.New("invalid status filter")
		}
	}

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, errors.New("invalid from timestamp, expected RFC3339")
		}
		filters.From = &from
	}

	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, errors.New("invalid to timestamp, expected RFC3339")
		}
		filters.To = &to
	}

	return filters, nil
}

// writeError maps the service error taxonomy onto HTTP status codes.
func (h *BookingHandler) writeError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrPolicyViolation):
		status = http.StatusBadRequest
	}

	c.JSON(status, APIResponse{
		Success: false,
		Message: message,
		Errors:  err.Error(),
	})
}
