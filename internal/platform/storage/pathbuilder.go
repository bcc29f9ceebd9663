package storage

import (
	"fmt"
	"strings"
	"time"
)

// BuildMediaObjectPath composes the object key for an uploaded media asset:
// <kind>/<year>/<month>/<assetID>-<fileName>. Segments are validated so user
// supplied names can never escape the kind prefix.
func BuildMediaObjectPath(kind string, at time.Time, assetID, fileName string) (string, error) {
	kindSegment, err := validateSegment("kind", kind)
	if err != nil {
		return "", err
	}
	idSegment, err := validateSegment("assetID", assetID)
	if err != nil {
		return "", err
	}
	nameSegment, err := validateFileName(fileName)
	if err != nil {
		return "", err
	}
	if at.IsZero() {
		return "", fmt.Errorf("storage: timestamp is required")
	}
	return fmt.Sprintf("%s/%s/%s-%s", kindSegment, at.UTC().Format("2006/01"), idSegment, nameSegment), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: fileName contains invalid path characters")
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid traversal sequence")
	}
	return value, nil
}
