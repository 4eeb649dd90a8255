package domain

import "github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/migrate"

// legacyThumbnailKey is the version 1 attribute holding a single thumbnail.
const legacyThumbnailKey = "thumbnail_url"

// ListingMigrations upgrades stored listings to SchemaVersion.
var ListingMigrations = migrate.NewRegistry(SchemaVersion, map[int]migrate.Step[*Listing]{
	1: singleThumbnailToMany,
})

// singleThumbnailToMany moves the version 1 thumbnail_url into Thumbnails.
func singleThumbnailToMany(l *Listing) {
	url, _ := l.Extra[legacyThumbnailKey].(string)
	if url != "" {
		l.Thumbnails = []string{url}
	}
	delete(l.Extra, legacyThumbnailKey)
	if len(l.Extra) == 0 {
		l.Extra = nil
	}
}
