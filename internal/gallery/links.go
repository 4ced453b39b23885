package gallery

import (
	"fmt"
	"net/url"
)

// ThumbnailURL returns the resized preview path for a stored photo file.
func ThumbnailURL(fileID string) string {
	return fmt.Sprintf("/api/gallery/stream?fileId=%s&size=400", url.QueryEscape(fileID))
}

// StreamURL returns the full-resolution stream path for a stored photo file.
func StreamURL(fileID string) string {
	return fmt.Sprintf("/api/gallery/stream?fileId=%s", url.QueryEscape(fileID))
}

// DownloadURL returns the tokenized download link for an entitlement.
func DownloadURL(siteBaseURL, downloadToken string) string {
	return fmt.Sprintf("%s/api/gallery/download?token=%s", siteBaseURL, url.QueryEscape(downloadToken))
}

// LibraryURL returns the public page for a library.
func LibraryURL(siteBaseURL, slug string) string {
	return fmt.Sprintf("%s/gallery/%s", siteBaseURL, url.PathEscape(slug))
}
