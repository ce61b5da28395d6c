// Package layout derives folder and file names for pointer files.
//
// Two layouts exist. Basic mirrors the catalog as-is:
//
//	series/<Series>/Temporada <label>/<Episode title>.strm
//	movies/<Movie>.strm
//	live/<Category>/<Channel>.strm
//
// Extended follows media-server naming (year, language tag, SxxEyy):
//
//	TV Shows/<Series (Year) - Dublado>/Season 01/<Series (Year) - Dublado> - s01e02 - <Title>.strm
//	Movies/<Movie (Year) - Legendado>/<Movie (Year) - Legendado>.strm
//	Live/<Category>/<Channel>.strm
package layout

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/snapetech/strmsync/internal/catalog"
	"github.com/snapetech/strmsync/internal/sanitize"
)

// Ext is the pointer file extension.
const Ext = ".strm"

// OtherCategory files live channels whose category is unknown.
const OtherCategory = "Others"

// Layout holds the naming rules for one output tree.
type Layout struct {
	Extended      bool
	Transliterate bool
}

func (l Layout) String() string {
	if l.Extended {
		return "extended"
	}
	return "basic"
}

// Subtrees returns the series, movies and live directory names.
func (l Layout) Subtrees() (series, movies, live string) {
	if l.Extended {
		return "TV Shows", "Movies", "Live"
	}
	return "series", "movies", "live"
}

// Dirs returns the three subtree paths under root.
func (l Layout) Dirs(root string) []string {
	s, m, lv := l.Subtrees()
	return []string{filepath.Join(root, s), filepath.Join(root, m), filepath.Join(root, lv)}
}

// Name sanitizes raw for use as a path segment. Empty results become "Unknown".
func (l Layout) Name(raw string) string {
	return sanitize.OrFallback(sanitize.NameWith(raw, sanitize.Options{
		Parens:        l.Extended,
		Transliterate: l.Transliterate,
	}), sanitize.Unknown)
}

// Title returns the display name of a movie or series. In the extended layout a trailing
// "(YYYY)" in raw is dropped in favour of year, and the language tag is appended.
// year is ignored by the basic layout.
func (l Layout) Title(raw, year string) string {
	if !l.Extended {
		return l.Name(raw)
	}
	bare, _ := sanitize.SplitTitleYear(raw)
	name := sanitize.OrFallback(sanitize.NameWith(bare, sanitize.Options{
		Parens:        true,
		Transliterate: l.Transliterate,
	}), sanitize.Unknown)
	if year == "" {
		year = sanitize.Unknown
	}
	return sanitize.LanguageTag(fmt.Sprintf("%s (%s)", name, year))
}

// MoviePath returns the pointer file path of a movie whose display name is title.
func (l Layout) MoviePath(root, title string) string {
	_, movies, _ := l.Subtrees()
	if l.Extended {
		return filepath.Join(root, movies, title, title+Ext)
	}
	return filepath.Join(root, movies, title+Ext)
}

// CategoryKey is the history partition of a live category: the plain sanitized name, or "Others".
// It does not depend on the layout, so switching layouts keeps history valid.
func CategoryKey(categoryName string) string {
	return sanitize.OrFallback(sanitize.Name(categoryName), OtherCategory)
}

// LivePath returns the pointer file path of a live channel.
func (l Layout) LivePath(root, categoryName, channelName string) string {
	_, _, live := l.Subtrees()
	category := sanitize.OrFallback(sanitize.NameWith(categoryName, sanitize.Options{Transliterate: l.Transliterate}), OtherCategory)
	return filepath.Join(root, live, category, l.Name(channelName)+Ext)
}

// SeriesDir returns the folder of a series whose display name is title.
func (l Layout) SeriesDir(root, title string) string {
	series, _, _ := l.Subtrees()
	return filepath.Join(root, series, title)
}

// SeasonDir returns the season folder name for a raw season label.
func (l Layout) SeasonDir(label string) string {
	if !l.Extended {
		return sanitize.OrFallback(sanitize.Name("Temporada "+label), "Temporada")
	}
	if n, err := strconv.Atoi(strings.TrimSpace(label)); err == nil && n >= 0 {
		return fmt.Sprintf("Season %02d", n)
	}
	return "Season " + l.Name(label)
}

// EpisodeFile returns the pointer file name of ep within its season folder.
// seriesTitle is the series display name (used by the extended layout only).
func (l Layout) EpisodeFile(seriesTitle, seasonLabel string, ep catalog.Episode) string {
	if !l.Extended {
		return l.episodeTitle(ep) + Ext
	}
	season := strings.TrimSpace(seasonLabel)
	if n, err := strconv.Atoi(season); err == nil && n >= 0 {
		season = fmt.Sprintf("%02d", n)
	} else {
		season = l.Name(season)
	}
	marker := fmt.Sprintf("s%se%02d", season, ep.EpisodeNum.Int())
	title := sanitize.NameWith(ep.Title, sanitize.Options{Parens: true, Transliterate: l.Transliterate})
	if title == "" {
		return fmt.Sprintf("%s - %s%s", seriesTitle, marker, Ext)
	}
	return fmt.Sprintf("%s - %s - %s%s", seriesTitle, marker, title, Ext)
}

// episodeTitle is the basic-layout episode name: the title, else "Episode <num>", else "Episode <id>".
func (l Layout) episodeTitle(ep catalog.Episode) string {
	if t := sanitize.NameWith(ep.Title, sanitize.Options{Transliterate: l.Transliterate}); t != "" {
		return t
	}
	num := string(ep.EpisodeNum)
	if num == "" {
		num = string(ep.ID)
	}
	return sanitize.OrFallback(sanitize.Name("Episode "+num), "Episode")
}

// EpisodePath joins the full pointer path of an episode.
func (l Layout) EpisodePath(root, seriesTitle, seasonLabel string, ep catalog.Episode) string {
	return filepath.Join(l.SeriesDir(root, seriesTitle), l.SeasonDir(seasonLabel), l.EpisodeFile(seriesTitle, seasonLabel, ep))
}

// MovieExt is the extension used in movie playback URLs: always mp4 in the basic layout,
// the catalog container in the extended one.
func (l Layout) MovieExt(container string) string {
	if l.Extended && validExt(container) {
		return container
	}
	return "mp4"
}

// EpisodeExt is the extension used in episode playback URLs: none in the basic layout,
// the catalog container (default mp4) in the extended one.
func (l Layout) EpisodeExt(container string) string {
	if !l.Extended {
		return ""
	}
	if validExt(container) {
		return container
	}
	return "mp4"
}

func validExt(ext string) bool {
	if ext == "" || len(ext) > 5 {
		return false
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
