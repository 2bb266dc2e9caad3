package fetcher

type FeedEntry struct {
	EntryID int64
	FeedID  int64
	URL     string
	Title   string
}

type FeedReader interface {
	Unread() ([]FeedEntry, error)
	MarkRead(entryID int64) error
}
