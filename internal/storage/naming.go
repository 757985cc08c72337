package storage

import (
	"fmt"
	"regexp"
	"strings"
)

var collectionNameRegexp = regexp.MustCompile("[^a-z0-9_-]+")

const maxCollectionNameLength = 255

// CollectionName scopes a collection to the embedding model, so switching
// models never mixes vectors of different spaces in one collection.
func CollectionName(base, embedderModel string) string {
	safeBase := collectionNameRegexp.ReplaceAllString(strings.ToLower(strings.ReplaceAll(base, "/", "-")), "")
	safeModel := strings.ToLower(strings.Split(embedderModel, ":")[0])
	safeModel = collectionNameRegexp.ReplaceAllString(strings.ReplaceAll(safeModel, "/", "-"), "")

	name := safeBase
	if safeModel != "" {
		name = fmt.Sprintf("%s-%s", safeBase, safeModel)
	}
	if len(name) > maxCollectionNameLength {
		name = name[:maxCollectionNameLength]
	}
	return name
}
