// Package event defines the terminal notifications emitted by catalog flows.
package event

import "github.com/kailas-cloud/catalog/internal/domain/product"

// Type names an event on the wire (server-sent events, logs).
type Type string

// Event types, one success/failure pair per flow.
const (
	TypeSearchCompleted     Type = "search_completed"
	TypeSearchFailed        Type = "search_failed"
	TypeMetadataLoaded      Type = "metadata_loaded"
	TypeMetadataFailed      Type = "metadata_failed"
	TypeThumbnailReady      Type = "thumbnail_ready"
	TypeThumbnailFailed     Type = "thumbnail_failed"
	TypeModelReady          Type = "model_ready"
	TypeModelFailed         Type = "model_failed"
	TypeAvailabilityChecked Type = "availability_checked"
)

// Event is a terminal flow notification.
type Event interface {
	Type() Type
}

// SearchCompleted carries the filtered search result, possibly empty.
type SearchCompleted struct {
	Query string               `json:"query"`
	Items []product.SearchItem `json:"items"`
}

// SearchFailed reports a failed search.
type SearchFailed struct {
	Query   string `json:"query"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// MetadataLoaded carries a product document.
type MetadataLoaded struct {
	ID       string `json:"id"`
	Document any    `json:"document"`
}

// MetadataFailed reports a failed metadata fetch.
type MetadataFailed struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// ThumbnailReady carries the cached thumbnail path.
type ThumbnailReady struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// ThumbnailFailed reports a failed thumbnail fetch.
type ThumbnailFailed struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// ModelReady carries the cached model path.
type ModelReady struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// ModelFailed reports a failed model fetch.
type ModelFailed struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// AvailabilityChecked always fires after an existence check.
// A failed check reports Exists=false.
type AvailabilityChecked struct {
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
}

func (SearchCompleted) Type() Type     { return TypeSearchCompleted }
func (SearchFailed) Type() Type        { return TypeSearchFailed }
func (MetadataLoaded) Type() Type      { return TypeMetadataLoaded }
func (MetadataFailed) Type() Type      { return TypeMetadataFailed }
func (ThumbnailReady) Type() Type      { return TypeThumbnailReady }
func (ThumbnailFailed) Type() Type     { return TypeThumbnailFailed }
func (ModelReady) Type() Type          { return TypeModelReady }
func (ModelFailed) Type() Type         { return TypeModelFailed }
func (AvailabilityChecked) Type() Type { return TypeAvailabilityChecked }
