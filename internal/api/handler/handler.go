package handler

import "dashcollab/backend/internal/collabhub"

// Handler carries the HTTP surface's dependencies.
type Handler struct {
	Hub       *collabhub.Registry
	jwtSecret []byte
}

func NewHandler(hub *collabhub.Registry, jwtSecret string) *Handler {
	return &Handler{Hub: hub, jwtSecret: []byte(jwtSecret)}
}
