package usecases

import (
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// Re-export domain types for presentation layer use.
// This allows presentation to depend only on usecases without importing domain directly.

// Station is an alias for domain.Station.
type Station = domain.Station

// Stations is an alias for domain.Stations.
type Stations = domain.Stations

// GuildStateRepository is an alias for domain.GuildStateRepository.
type GuildStateRepository = domain.GuildStateRepository
