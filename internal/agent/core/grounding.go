package core

import "github.com/mohammad-safakhou/ragrouter/models"

// strictSources are the factual, time-sensitive sources whose presence
// forbids answering beyond the evidence.
var strictSources = []models.SourceID{
	models.SourceWeather,
	models.SourceFinance,
	models.SourceTransport,
	models.SourceWebSearch,
}

// DecideGrounding picks strict grounding when any consulted source is
// factual and time-sensitive, permissive otherwise.
func DecideGrounding(sources []models.SourceID) GroundingMode {
	for _, s := range sources {
		for _, strict := range strictSources {
			if s == strict {
				return GroundingStrict
			}
		}
	}
	return GroundingPermissive
}
