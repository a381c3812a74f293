// package formatter renders track and playlist listings as CSV, Markdown, or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/rhythmiq/internal/services"
	"github.com/desertthunder/rhythmiq/internal/shared"
)

// Format selects a renderer.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts the names used on the command line ("md" is shorthand for markdown).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension written for the format.
func (f Format) Ext() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// Listing is a titled list of tracks (liked songs or a playlist).
type Listing struct {
	Title       string
	Description string
	Total       int
	Tracks      []services.SpotifyTrack
}

// LikedListing builds a listing from pages of saved tracks.
func LikedListing(pages ...*services.SpotifyPaginatedTracks) Listing {
	l := Listing{Title: "Liked Songs"}
	for _, p := range pages {
		if p == nil {
			continue
		}
		if p.Total > l.Total {
			l.Total = p.Total
		}
		for _, item := range p.Items {
			l.Tracks = append(l.Tracks, item.Track)
		}
	}
	return l
}

// PlaylistListing builds a listing from a playlist page. Entries without a track id (local files, removed tracks) are skipped.
func PlaylistListing(playlist services.SpotifySimplePlaylist, page *services.SpotifyPaginatedPlaylistTracks) Listing {
	l := Listing{Title: playlist.Name, Description: playlist.Description, Total: playlist.TrackCount()}
	if l.Title == "" {
		l.Title = playlist.ID
	}
	if page == nil {
		return l
	}
	if page.Total > l.Total {
		l.Total = page.Total
	}
	for _, item := range page.Items {
		if item.Track.ID == "" {
			continue
		}
		l.Tracks = append(l.Tracks, item.Track)
	}
	return l
}

// Render dispatches to the renderer for f.
func Render(f Format, l Listing) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ToCSV(l)
	case FormatMarkdown:
		return ToMarkdown(l), nil
	case FormatText:
		return ToText(l), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// ToCSV writes one row per track with columns: ID, Title, Artist, Album, Duration, ISRC
func ToCSV(l Listing) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"ID", "Title", "Artist", "Album", "Duration", "ISRC"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range l.Tracks {
		record := []string{
			t.ID,
			t.Name,
			t.ArtistNames(),
			t.Album.Name,
			strconv.Itoa(t.DurationMS / 1000),
			t.ExternalIDs.ISRC,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ToMarkdown renders a heading, the description, and a numbered track list.
func ToMarkdown(l Listing) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", l.Title)
	if l.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", l.Description)
	}
	fmt.Fprintf(&buf, "**Tracks**: %s\n\n", countLabel(l))

	buf.WriteString("## Tracks\n\n")
	for i, t := range l.Tracks {
		album := ""
		if t.Album.Name != "" {
			album = fmt.Sprintf(" (%s)", t.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, t.ArtistNames(), t.Name, album, FormatDuration(t.Duration()))
	}
	return buf.Bytes()
}

// ToText renders a plain numbered list.
func ToText(l Listing) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", l.Title)
	if l.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", l.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %s\n\n", countLabel(l))

	for i, t := range l.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, t.ArtistNames(), t.Name)
	}
	return buf.Bytes()
}

// PlaylistsToText renders one line per playlist with its id and track count.
func PlaylistsToText(list *services.SpotifyPlaylistList) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Playlists: %d\n\n", len(list.Items))
	for i, p := range list.Items {
		fmt.Fprintf(&buf, "%d. %s [%s] (%d tracks)\n", i+1, p.Name, p.ID, p.TrackCount())
	}
	return buf.Bytes()
}

// FormatDuration renders d as m:ss, or h:mm:ss past an hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// WriteFile renders l into path, creating parent directories.
// An empty path defaults to a slug of the listing title plus the format extension.
func WriteFile(f Format, l Listing, path string) (string, error) {
	if path == "" {
		path = Slug(l.Title) + f.Ext()
	}

	data, err := Render(f, l)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Slug lowercases s and replaces runs of non-alphanumerics with a single underscore.
func Slug(s string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if sep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			sep = false
			continue
		}
		sep = true
	}
	if b.Len() == 0 {
		return "tracks"
	}
	return b.String()
}

func countLabel(l Listing) string {
	if l.Total > len(l.Tracks) {
		return fmt.Sprintf("%d of %d", len(l.Tracks), l.Total)
	}
	return strconv.Itoa(len(l.Tracks))
}
