package container

import (
	"finscope/internal/application/market"
	"finscope/internal/application/port"
	"finscope/internal/application/service"
)

// Container lazily builds the application services around one store.
type Container struct {
	store  *market.Store
	mirror port.PriceMirror // nil disables mirroring

	mirrorRate  float64
	mirrorBurst int

	priceService  *service.PriceService
	mirrorService *service.MirrorService
}

func New(store *market.Store, mirror port.PriceMirror, mirrorRate float64, mirrorBurst int) *Container {
	return &Container{
		store:       store,
		mirror:      mirror,
		mirrorRate:  mirrorRate,
		mirrorBurst: mirrorBurst,
	}
}

func (c *Container) Store() *market.Store {
	return c.store
}

func (c *Container) PriceService() *service.PriceService {
	if c.priceService == nil {
		c.priceService = service.NewPriceService(c.store)
	}
	return c.priceService
}

// MirrorService is nil when no mirror was given.
func (c *Container) MirrorService() *service.MirrorService {
	if c.mirror == nil {
		return nil
	}
	if c.mirrorService == nil {
		c.mirrorService = service.NewMirrorService(c.mirror, c.mirrorRate, c.mirrorBurst)
	}
	return c.mirrorService
}
