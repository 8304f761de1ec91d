package controller

// EventKind names a controller state change.
type EventKind string

const (
	EventOpened        EventKind = "opened"
	EventCreated       EventKind = "created"
	EventEditMode      EventKind = "edit_mode"
	EventRenamed       EventKind = "renamed"
	EventWidgetAdded   EventKind = "widget_added"
	EventWidgetRemoved EventKind = "widget_removed"
	EventLayoutChanged EventKind = "layout_changed"
	EventFilterApplied EventKind = "filter_applied"
	EventFilterReset   EventKind = "filter_reset"
	EventFilterPanel   EventKind = "filter_panel"
	EventSaved         EventKind = "saved"
	EventSaveFailed    EventKind = "save_failed"
)

// Event is delivered to the Notifier after every mutation.
type Event struct {
	Kind        EventKind `json:"kind"`
	DashboardID string    `json:"dashboardId"`
	WidgetID    string    `json:"widgetId,omitempty"`
	Err         error     `json:"-"`
}

// Notifier is called synchronously, on the goroutine that made the change.
type Notifier func(Event)
