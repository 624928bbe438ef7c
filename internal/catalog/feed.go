package catalog

import (
	"bytes"
	"encoding/json"
)

type searchResponse struct {
	Results []struct {
		CollectionID     int64  `json:"collectionId"`
		CollectionName   string `json:"collectionName"`
		ArtistName       string `json:"artistName"`
		PrimaryGenreName string `json:"primaryGenreName"`
		ArtworkURL600    string `json:"artworkUrl600"`
		FeedURL          string `json:"feedUrl"`
	} `json:"results"`
}

type label struct {
	Label string `json:"label"`
}

type feedEntry struct {
	Name   label `json:"im:name"`
	Artist label `json:"im:artist"`
	ID     struct {
		Attributes struct {
			ID string `json:"im:id"`
		} `json:"attributes"`
	} `json:"id"`
	Category struct {
		Attributes struct {
			Label string `json:"label"`
		} `json:"attributes"`
	} `json:"category"`
}

// feedEntries decodes "entry", which the feed sends as a bare object
// instead of an array when it holds a single podcast.
type feedEntries []feedEntry

func (e *feedEntries) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var one feedEntry
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*e = feedEntries{one}
		return nil
	}
	var many []feedEntry
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*e = many
	return nil
}

type feedResponse struct {
	Feed struct {
		Entry feedEntries `json:"entry"`
	} `json:"feed"`
}
