package registry

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pigeon-sms/pigeon/internal/middleware"
)

// Handler exposes registry HTTP endpoints.
type Handler struct {
	service *Service
	now     func() time.Time
}

// NewHandler builds a registry HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

type onboardRequest struct {
	Phone             string  `json:"phone"`
	Address           string  `json:"address"`
	EncryptedMnemonic string  `json:"encrypted_mnemonic"`
	CreatedAt         *uint64 `json:"created_at"`
}

type updateRequest struct {
	Address           string `json:"address"`
	EncryptedMnemonic string `json:"encrypted_mnemonic"`
}

type userResponse struct {
	Phone             string `json:"phone"`
	Address           string `json:"address"`
	EncryptedMnemonic string `json:"encrypted_mnemonic"`
	CreatedAt         uint64 `json:"created_at"`
}

type stateResponse struct {
	Admin      string `json:"admin"`
	TotalUsers uint64 `json:"total_users"`
}

func toUserResponse(u UserRecord) userResponse {
	return userResponse{
		Phone:             u.Phone,
		Address:           u.Address,
		EncryptedMnemonic: u.EncryptedMnemonic,
		CreatedAt:         u.CreatedAt,
	}
}

// Initialize records the authenticated caller as the registry admin.
func (h *Handler) Initialize(c *fiber.Ctx) error {
	state, err := h.service.Initialize(c.UserContext(), caller(c))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(stateResponse{Admin: state.Admin.String(), TotalUsers: state.TotalUsers})
}

// State returns the registry singleton.
func (h *Handler) State(c *fiber.Ctx) error {
	state, err := h.service.GetState(c.UserContext())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(stateResponse{Admin: state.Admin.String(), TotalUsers: state.TotalUsers})
}

// TotalUsers returns the live user counter.
func (h *Handler) TotalUsers(c *fiber.Ctx) error {
	total, err := h.service.GetTotalUsers(c.UserContext())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"total_users": total})
}

// Onboard registers a new phone number.
func (h *Handler) Onboard(c *fiber.Ctx) error {
	var req onboardRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return httpError(err)
	}
	createdAt := uint64(h.now().Unix())
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}
	user, err := h.service.OnboardUser(c.UserContext(), caller(c), OnboardInput{
		Phone:             phone,
		Address:           req.Address,
		EncryptedMnemonic: req.EncryptedMnemonic,
		CreatedAt:         createdAt,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toUserResponse(user))
}

// Update replaces the wallet data of an existing phone number.
func (h *Handler) Update(c *fiber.Ctx) error {
	phone, err := NormalizePhone(c.Params("phone"))
	if err != nil {
		return httpError(err)
	}
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, err := h.service.UpdateUser(c.UserContext(), caller(c), UpdateInput{
		Phone:             phone,
		Address:           req.Address,
		EncryptedMnemonic: req.EncryptedMnemonic,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toUserResponse(user))
}

// Delete removes a phone number from the registry.
func (h *Handler) Delete(c *fiber.Ctx) error {
	phone, err := NormalizePhone(c.Params("phone"))
	if err != nil {
		return httpError(err)
	}
	if err := h.service.DeleteUser(c.UserContext(), caller(c), phone); err != nil {
		return httpError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Get returns the full record for a phone number.
func (h *Handler) Get(c *fiber.Ctx) error {
	phone, err := NormalizePhone(c.Params("phone"))
	if err != nil {
		return httpError(err)
	}
	user, err := h.service.GetUser(c.UserContext(), phone)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(toUserResponse(user))
}

// Exists reports whether a phone number is registered.
func (h *Handler) Exists(c *fiber.Ctx) error {
	phone, err := NormalizePhone(c.Params("phone"))
	if err != nil {
		return httpError(err)
	}
	exists, err := h.service.UserExists(c.UserContext(), phone)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"phone": phone, "exists": exists})
}

// Address returns only the wallet address of a phone number.
func (h *Handler) Address(c *fiber.Ctx) error {
	phone, err := NormalizePhone(c.Params("phone"))
	if err != nil {
		return httpError(err)
	}
	address, err := h.service.GetUserAddress(c.UserContext(), phone)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"phone": phone, "address": address})
}

func caller(c *fiber.Ctx) Identity {
	return Identity(middleware.CallerIdentity(c))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidPhone):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrNotInitialized), errors.Is(err, ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrOverflow), errors.Is(err, ErrUnderflow):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrAllocation):
		return fiber.NewError(http.StatusRequestEntityTooLarge, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
