package strategy

import (
	"github.com/angeloszaimis/tcp-load-balancer/internal/backend"
)

type Strategy interface {
	SelectBackend(backends []*backend.Backend) *backend.Backend
}
