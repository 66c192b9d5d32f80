package publish

// Post is a rewritten news item ready to be published.
type Post struct {
	Title     string
	Summary   string
	Content   string
	ImageURL  string
	SourceURL string
}
