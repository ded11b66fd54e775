package types

import (
	"github.com/podforge/digest-api/internal/catalog"
	"github.com/podforge/digest-api/internal/database"
	"github.com/podforge/digest-api/internal/services/cache"
	"github.com/podforge/digest-api/internal/services/pipeline"
	"github.com/podforge/digest-api/internal/services/runs"
	"github.com/podforge/digest-api/internal/services/store"
)

// Dependencies holds all the dependencies needed by handlers
type Dependencies struct {
	DB       *database.DB
	Catalog  *catalog.Catalog
	Store    *store.Service
	Pipeline pipeline.Orchestrator
	Runs     runs.Service
	Cache    cache.Cache
}
