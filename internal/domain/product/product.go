package product

// SearchItem is one product returned by a catalog search.
// All fields are required; raw records missing any of them are dropped.
type SearchItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url"`
	ImageAlt  string `json:"image_alt"`
	DetailURL string `json:"detail_url"`
}

// Metadata is the catalog's product document, passed through verbatim.
type Metadata struct {
	ID       Identifier `json:"id"`
	Document any        `json:"document"`
	// Cached is true when the document was served from the local cache.
	Cached bool `json:"cached"`
}

// Availability reports whether a 3D model exists for a product.
type Availability struct {
	ID     Identifier `json:"id"`
	Exists bool       `json:"exists"`
}
