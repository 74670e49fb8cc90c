package analytics

import "encoding/json"

// Event names understood by the collection endpoint.
const (
	EventComponentCreated            = "component.created"
	EventComponentViewed             = "component.viewed"
	EventWebPageLoaded               = "component.web.page_loaded"
	EventWebComponentLoaded          = "component.web.component_loaded"
	EventWebErrorPageLoad            = "component.web.error.page_load"
	EventWebErrorUnexpectedNav       = "component.web.error.unexpected_navigation"
	EventWebErrorUnexpectedLoadError = "component.web.error.unexpected_load_error_type"
	EventWebWarnUnrecognizedSetter   = "component.web.warn.unrecognized_setter_function"
	EventWebErrorDeserializeMessage  = "component.web.error.deserialize_message"
	EventAuthenticatedWebOpened      = "component.authenticated_web.opened"
	EventAuthenticatedWebCanceled    = "component.authenticated_web.canceled"
	EventAuthenticatedWebRedirected  = "component.authenticated_web.redirected"
	EventAuthenticatedWebError       = "component.authenticated_web.error"
	EventClientError                 = "client_error"
)

// Event is one analytics record. The system fields (ClientID through
// AppVersion) are filled in by Client.Send.
type Event struct {
	EventID           string         `json:"event_id"`
	Created           int64          `json:"created"`
	ClientID          string         `json:"client_id"`
	Origin            string         `json:"origin"`
	Platform          string         `json:"sdk_platform"`
	SDKVersion        string         `json:"sdk_version"`
	OSVersion         string         `json:"os_version"`
	DeviceType        string         `json:"device_type"`
	AppName           string         `json:"app_name"`
	AppVersion        string         `json:"app_version"`
	PublishableKey    string         `json:"publishable_key,omitempty"`
	PlatformID        string         `json:"platform_id,omitempty"`
	MerchantID        string         `json:"merchant_id,omitempty"`
	LiveMode          *bool          `json:"livemode,omitempty"`
	Component         string         `json:"component"`
	ComponentInstance string         `json:"component_instance"`
	Name              string         `json:"event_name"`
	Metadata          map[string]any `json:"event_metadata,omitempty"`
}

// MarshalJSON writes the metadata both nested under event_metadata and
// flattened at the top level, which is what the collector indexes on.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	base, err := json.Marshal(plain(e))
	if err != nil {
		return nil, err
	}
	if len(e.Metadata) == 0 {
		return base, nil
	}
	var flat map[string]any
	if err := json.Unmarshal(base, &flat); err != nil {
		return nil, err
	}
	for k, v := range e.Metadata {
		if _, taken := flat[k]; !taken {
			flat[k] = v
		}
	}
	return json.Marshal(flat)
}
