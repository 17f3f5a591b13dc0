package skins

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

const (
	DefaultSearchMinFragment = 3
	DefaultSearchTake        = 20
	DefaultSearchMaxTake     = 100
)

// SearchItem is one row of a search page.
type SearchItem struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
	// Head is the base64 encoded 36x36 head.
	Head string `json:"head"`
}

// SearchPage is a page of search results.
type SearchPage struct {
	Fragment   string
	Items      []SearchItem
	TotalCount int64
	NextPage   int
}

// SearchIndex answers substring queries over cached nicknames. It only
// reads the store and never triggers refreshes.
type SearchIndex struct {
	store       Store
	minFragment int
	maxTake     int
}

// NewSearchIndex builds an index. minFragment is the shortest fragment that is
// searched at all (deployments have used 2 and 3); maxTake caps page sizes.
func NewSearchIndex(store Store, minFragment, maxTake int) *SearchIndex {
	if minFragment <= 0 {
		minFragment = DefaultSearchMinFragment
	}
	if maxTake <= 0 {
		maxTake = DefaultSearchMaxTake
	}
	return &SearchIndex{store: store, minFragment: minFragment, maxTake: maxTake}
}

// Search returns page number page (zero based) of valid records whose
// nickname contains fragment, case-insensitively, ordered by display name.
// Short fragments, empty results and pages whose offset cannot be represented
// yield ErrNoContent. NextPage is always page+1, whether or not more rows exist.
func (i *SearchIndex) Search(ctx context.Context, fragment string, take, page int) (*SearchPage, error) {
	if utf8.RuneCountInString(fragment) < i.minFragment {
		return nil, ErrNoContent
	}
	if take <= 0 {
		take = DefaultSearchTake
	}
	if take > i.maxTake {
		take = i.maxTake
	}
	if page < 0 {
		page = 0
	}
	if page > (math.MaxInt-1)/take {
		return nil, ErrNoContent
	}

	hits, total, err := i.store.Search(ctx, strings.ToLower(fragment), take, take*page)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", fragment, err)
	}
	if len(hits) == 0 {
		return nil, ErrNoContent
	}

	items := make([]SearchItem, len(hits))
	for n, hit := range hits {
		items[n] = SearchItem{
			Name: hit.DefaultNick,
			UUID: hit.UUID,
			Head: base64.StdEncoding.EncodeToString(hit.Head),
		}
	}
	return &SearchPage{
		Fragment:   fragment,
		Items:      items,
		TotalCount: total,
		NextPage:   page + 1,
	}, nil
}
