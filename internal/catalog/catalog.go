package catalog

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ID is a remote identifier or other scalar that panels send either as a JSON string or a number
// (sometimes both within one response). It decodes to its decimal string form; null decodes to "".
type ID string

// UnmarshalJSON accepts "5", 5, 5.0, null and booleans.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	if bytes.Equal(b, []byte("true")) || bytes.Equal(b, []byte("false")) {
		*id = ID(b)
		return nil
	}
	if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*id = ID(strconv.FormatInt(n, 10))
		return nil
	}
	if f, err := strconv.ParseFloat(string(b), 64); err == nil && f == float64(int64(f)) {
		*id = ID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*id = ID(b)
	return nil
}

func (id ID) String() string { return string(id) }

// Int returns the numeric value, or 0 when the id is not an integer.
func (id ID) Int() int {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0
	}
	return n
}

// Category is a live/vod/series category (get_live_categories).
type Category struct {
	ID   ID     `json:"category_id"`
	Name string `json:"category_name"`
}

// CategoryNames maps category id to display name. Empty ids are dropped.
func CategoryNames(cats []Category) map[string]string {
	m := make(map[string]string, len(cats))
	for _, c := range cats {
		if c.ID == "" {
			continue
		}
		m[string(c.ID)] = c.Name
	}
	return m
}

// Movie is one entry from get_vod_streams.
type Movie struct {
	StreamID           ID     `json:"stream_id"`
	Name               string `json:"name"`
	Year               ID     `json:"year,omitempty"`
	CategoryID         ID     `json:"category_id,omitempty"`
	ContainerExtension string `json:"container_extension,omitempty"`
	ReleaseDate        string `json:"releasedate,omitempty"`
	ReleaseDateAlt     string `json:"releaseDate,omitempty"`
	StreamIcon         string `json:"stream_icon,omitempty"`
}

// Released returns whichever release date spelling the panel used.
func (m Movie) Released() string {
	if m.ReleaseDate != "" {
		return m.ReleaseDate
	}
	return m.ReleaseDateAlt
}

// Series is one entry from get_series. Some panels send id instead of series_id.
type Series struct {
	SeriesID    ID     `json:"series_id"`
	AltID       ID     `json:"id,omitempty"`
	Name        string `json:"name"`
	Year        ID     `json:"year,omitempty"`
	CategoryID  ID     `json:"category_id,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	Cover       string `json:"cover,omitempty"`
}

// Key returns the series id, falling back to the alternate id field.
func (s Series) Key() string {
	if s.SeriesID != "" {
		return string(s.SeriesID)
	}
	return string(s.AltID)
}

// LiveChannel is one entry from get_live_streams.
type LiveChannel struct {
	StreamID     ID     `json:"stream_id"`
	Name         string `json:"name"`
	CategoryID   ID     `json:"category_id,omitempty"`
	EpgChannelID ID     `json:"epg_channel_id,omitempty"`
	StreamIcon   string `json:"stream_icon,omitempty"`
}

// Episode is one entry of get_series_info episodes.
type Episode struct {
	ID                 ID     `json:"id"`
	EpisodeNum         ID     `json:"episode_num"`
	Title              string `json:"title"`
	Season             ID     `json:"season,omitempty"`
	ContainerExtension string `json:"container_extension,omitempty"`
}

// SeriesInfo is the decoded get_series_info response. Episodes is keyed by the raw season label.
type SeriesInfo struct {
	Info     SeriesMeta           `json:"info"`
	Episodes map[string][]Episode `json:"-"`
}

// SeriesMeta is the info block of get_series_info.
type SeriesMeta struct {
	Name        string `json:"name"`
	Year        ID     `json:"year,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
}

// UnmarshalJSON decodes episodes from either an object keyed by season label or a flat array,
// in which case episodes are grouped by their season field.
func (si *SeriesInfo) UnmarshalJSON(b []byte) error {
	var raw struct {
		Info     json.RawMessage `json:"info"`
		Episodes json.RawMessage `json:"episodes"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	si.Info = SeriesMeta{}
	si.Episodes = nil
	if len(raw.Info) > 0 && raw.Info[0] == '{' {
		if err := json.Unmarshal(raw.Info, &si.Info); err != nil {
			return err
		}
	}
	eps := bytes.TrimSpace(raw.Episodes)
	if len(eps) == 0 {
		return nil
	}
	switch eps[0] {
	case '{':
		var bySeason map[string][]Episode
		if err := json.Unmarshal(eps, &bySeason); err != nil {
			return err
		}
		si.Episodes = bySeason
	case '[':
		var flat []Episode
		if err := json.Unmarshal(eps, &flat); err != nil {
			return err
		}
		si.Episodes = make(map[string][]Episode)
		for _, ep := range flat {
			season := string(ep.Season)
			if season == "" {
				season = "1"
			}
			si.Episodes[season] = append(si.Episodes[season], ep)
		}
	}
	return nil
}

// AccountInfo is the bare player_api.php auth response (user_info + server_info).
type AccountInfo struct {
	UserInfo struct {
		Username       string `json:"username"`
		Status         string `json:"status"`
		ExpDate        ID     `json:"exp_date"`
		MaxConnections ID     `json:"max_connections"`
		ActiveCons     ID     `json:"active_cons"`
		Auth           ID     `json:"auth"`
	} `json:"user_info"`
	ServerInfo struct {
		URL      string `json:"url"`
		Port     ID     `json:"port"`
		Timezone string `json:"timezone"`
	} `json:"server_info"`
}
