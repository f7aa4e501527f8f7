package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pigeon-sms/pigeon/internal/registry"
)

// RegisterRegistryReadRoutes wires the public registry queries.
func RegisterRegistryReadRoutes(r fiber.Router, h *registry.Handler) {
	r.Get("/registry", h.State)
	r.Get("/registry/total-users", h.TotalUsers)
	r.Get("/users/:phone", h.Get)
	r.Get("/users/:phone/exists", h.Exists)
	r.Get("/users/:phone/address", h.Address)
}

// RegisterRegistryMutationRoutes wires the admin-gated registry mutations.
func RegisterRegistryMutationRoutes(r fiber.Router, h *registry.Handler) {
	r.Post("/registry/initialize", h.Initialize)
	r.Post("/users", h.Onboard)
	r.Put("/users/:phone", h.Update)
	r.Delete("/users/:phone", h.Delete)
}
