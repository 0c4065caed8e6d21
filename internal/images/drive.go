package images

import (
	"fmt"
	"regexp"
)

// Patterns are tried in order; the file id is the first capture group. The
// /d/ form is last because it also matches the /file/d/ form.
var driveFileIdPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([\w-]+)`),
	regexp.MustCompile(`[?&]id=([\w-]+)`),
	regexp.MustCompile(`/d/([\w-]+)`),
}

// ExtractDriveFileId pulls the file id out of the common Google Drive share
// URL shapes.
func ExtractDriveFileId(url string) (string, error) {
	for _, pattern := range driveFileIdPatterns {
		if match := pattern.FindStringSubmatch(url); match != nil {
			return match[1], nil
		}
	}
	return "", fmt.Errorf("could not extract file id from drive url %q", url)
}

func driveDownloadPath(fileId string) string {
	return fmt.Sprintf("/uc?export=download&id=%s", fileId)
}
