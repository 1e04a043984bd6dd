package messaging

type ChangeTopic string

const (
	// BrowseTracked carries navigation and session events from the storefront.
	BrowseTracked ChangeTopic = "tracking"
	// TaxonomyChanged is published by the catalog service when categories or
	// subcategories are edited.
	TaxonomyChanged ChangeTopic = "taxonomy_changed"
)

const GlobalPrefix = "global"

type RabbitConfig struct {
	Url    string
	Prefix string
}
