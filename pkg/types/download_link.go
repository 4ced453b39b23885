package types

// DownloadLink is one named asset link embedded in transactional mail.
type DownloadLink struct {
	Title string
	URL   string
}
