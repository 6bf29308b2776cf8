// Package transitfeed provides the client for the remote bus-departure
// forecast API and the batch access layer the planner consumes.
package transitfeed

import "time"

// MaxForecastSeconds is the upstream limit on the forecast window.
const MaxForecastSeconds = 1200

// Departure is one forecast bus departure at a site.
type Departure struct {
	// JourneyID identifies a single scheduled run of a vehicle; it is
	// stable across the stops of that run.
	JourneyID int64

	// LineID and LineDesignation identify the bus line.
	LineID          int64
	LineDesignation string

	// DirectionCode distinguishes the two travel directions of a line.
	DirectionCode string

	// SiteID is the site at which this departure was observed.
	SiteID int64

	// StopPointID is the platform the bus departs from.
	StopPointID int64

	// StopPointName is the platform's display name.
	StopPointName string

	// Expected is the forecast departure time.
	Expected time.Time

	// Destination is the headsign label.
	Destination string
}
