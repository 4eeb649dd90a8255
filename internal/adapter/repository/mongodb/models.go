package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/listing/domain"
)

// listingDocument is a listing as stored in the listings collection. Fields
// not declared here, such as attributes of older schema versions, are kept in
// Extra so migrations can read them.
type listingDocument struct {
	Permalink   string   `bson:"_id"`
	Seller      string   `bson:"seller"`
	Title       string   `bson:"title"`
	Body        string   `bson:"body"`
	Price       int64    `bson:"price"`
	PostingTime float64  `bson:"posting_time"`
	Categories  []string `bson:"categories"`
	Photos      []string `bson:"photos"`
	Thumbnails  []string `bson:"thumbnails"`
	Keywords    []string `bson:"keywords"`
	Version     int      `bson:"version"`
	Extra       bson.M   `bson:",inline"`
}

// declaredFields are the keys listingDocument maps to struct fields. Extra
// must never repeat one of them.
var declaredFields = map[string]struct{}{
	"_id": {}, "seller": {}, "title": {}, "body": {}, "price": {},
	"posting_time": {}, "categories": {}, "photos": {}, "thumbnails": {},
	"keywords": {}, "version": {},
}

// permalinkDocument is the key-only projection used by shard queries.
type permalinkDocument struct {
	Permalink string `bson:"_id"`
}

func toListingDocument(l *domain.Listing, keywords []string) *listingDocument {
	doc := &listingDocument{
		Permalink:   l.Permalink,
		Seller:      l.Seller,
		Title:       l.Title,
		Body:        l.Body,
		Price:       l.Price,
		PostingTime: l.PostingTime,
		Categories:  nonNil(l.Categories),
		Photos:      nonNil(l.Photos),
		Thumbnails:  nonNil(l.Thumbnails),
		Keywords:    nonNil(keywords),
		Version:     l.Version,
	}
	for k, v := range l.Extra {
		if _, ok := declaredFields[k]; ok {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(bson.M, len(l.Extra))
		}
		doc.Extra[k] = v
	}
	return doc
}

func toListingEntity(doc *listingDocument) *domain.Listing {
	l := &domain.Listing{
		Permalink:   doc.Permalink,
		Seller:      doc.Seller,
		Title:       doc.Title,
		Body:        doc.Body,
		Price:       doc.Price,
		PostingTime: doc.PostingTime,
		Categories:  nonNil(doc.Categories),
		Photos:      nonNil(doc.Photos),
		Thumbnails:  nonNil(doc.Thumbnails),
		Version:     doc.Version,
	}
	if len(doc.Extra) > 0 {
		l.Extra = make(map[string]interface{}, len(doc.Extra))
		for k, v := range doc.Extra {
			l.Extra[k] = v
		}
	}
	return l
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
