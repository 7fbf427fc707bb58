package models

// Defaults applied to a freshly created room.
const (
	DefaultDateRange     = "30d"
	DefaultJourneySource = "google"
)

// DefaultKpiCards returns the four baseline KPI cards enabled for a new room.
func DefaultKpiCards() []string {
	return []string{"visitors", "conversions", "revenue", "bounce_rate"}
}

// DashboardState is the shared filter/drill state of one dashboard room.
// Exactly one logical copy exists per room; every client's local copy is a
// possibly lagging replica updated by the last received broadcast.
type DashboardState struct {
	SelectedDateRange     string   `json:"selectedDateRange"`
	EnabledKpiCards       []string `json:"enabledKpiCards"`
	SelectedJourneySource string   `json:"selectedJourneySource"`
	// ConnectedProperty is the analytics property bound to the dashboard,
	// nil until one is connected.
	ConnectedProperty *string `json:"connectedProperty"`
	// DrillDownPath is the ordered sequence of segment keys for the current
	// drill position.
	DrillDownPath []string `json:"drillDownPath"`
}

// DefaultDashboardState returns the state a room starts with.
func DefaultDashboardState() DashboardState {
	return DashboardState{
		SelectedDateRange:     DefaultDateRange,
		EnabledKpiCards:       DefaultKpiCards(),
		SelectedJourneySource: DefaultJourneySource,
		DrillDownPath:         []string{},
	}
}

// StatePatch is a partial DashboardState. A nil field was absent from the
// incoming delta and leaves the corresponding state field untouched; slice
// fields rely on JSON decoding leaving absent slices nil while an explicit
// empty array decodes to a non-nil empty slice.
type StatePatch struct {
	SelectedDateRange     *string  `json:"selectedDateRange,omitempty"`
	EnabledKpiCards       []string `json:"enabledKpiCards,omitempty"`
	SelectedJourneySource *string  `json:"selectedJourneySource,omitempty"`
	// ConnectedProperty set to the empty string clears the connection.
	ConnectedProperty *string  `json:"connectedProperty,omitempty"`
	DrillDownPath     []string `json:"drillDownPath,omitempty"`
}

// Merge applies the patch field-wise: fields present in the patch overwrite,
// absent fields are untouched. Last writer wins per field, not per object.
func (s *DashboardState) Merge(p StatePatch) {
	if p.SelectedDateRange != nil {
		s.SelectedDateRange = *p.SelectedDateRange
	}
	if p.EnabledKpiCards != nil {
		s.EnabledKpiCards = append([]string(nil), p.EnabledKpiCards...)
	}
	if p.SelectedJourneySource != nil {
		s.SelectedJourneySource = *p.SelectedJourneySource
	}
	if p.ConnectedProperty != nil {
		if *p.ConnectedProperty == "" {
			s.ConnectedProperty = nil
		} else {
			v := *p.ConnectedProperty
			s.ConnectedProperty = &v
		}
	}
	if p.DrillDownPath != nil {
		s.DrillDownPath = append([]string(nil), p.DrillDownPath...)
	}
}

// Clone returns a deep copy safe to hand outside the registry loop.
func (s DashboardState) Clone() DashboardState {
	out := s
	out.EnabledKpiCards = append([]string(nil), s.EnabledKpiCards...)
	out.DrillDownPath = append([]string(nil), s.DrillDownPath...)
	if s.ConnectedProperty != nil {
		v := *s.ConnectedProperty
		out.ConnectedProperty = &v
	}
	return out
}
