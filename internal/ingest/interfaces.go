package ingest

// Walker queries a decoded configuration document.
type Walker interface {
	// Query executes a selector against root and returns the matches in document order.
	Query(root any, selector string) ([]Match, error)
}

// Match represents a single result from a query.
type Match interface {
	// Values returns the matched object's fields. A primitive match is
	// returned under the "value" key.
	Values() map[string]any

	// Context returns the matched value itself, usable as root for nested queries.
	Context() any
}
