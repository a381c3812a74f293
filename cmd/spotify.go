package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/rhythmiq/internal/formatter"
	"github.com/desertthunder/rhythmiq/internal/services"
	"github.com/desertthunder/rhythmiq/internal/shared"
	"github.com/urfave/cli/v3"
)

// authenticated loads the configuration and passes the route guard before any protected call.
func (r *Runner) authenticated(ctx context.Context, cmd *cli.Command) error {
	if err := r.configure(cmd); err != nil {
		return err
	}
	if _, err := r.restore(ctx); err != nil {
		return fmt.Errorf("%w: run 'rhythmiq auth login' first", err)
	}
	return nil
}

// SpotifyMe prints the profile fetched during the session check.
func (r *Runner) SpotifyMe(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticated(ctx, cmd); err != nil {
		return err
	}

	profile := r.manager.State().UserProfile
	if profile == nil {
		return fmt.Errorf("%w: no profile for session", shared.ErrMalformedResponse)
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, cmd.Bool("pretty"))
	}

	r.writePlainHeader(profile.Name())
	r.writePlain("ID: %s\n", profile.ID)
	if profile.Email != "" {
		r.writePlain("Email: %s\n", profile.Email)
	}
	if profile.Country != "" {
		r.writePlain("Country: %s\n", profile.Country)
	}
	if profile.Product != "" {
		r.writePlain("Plan: %s\n", profile.Product)
	}
	return r.writePlain("Followers: %d\n", profile.Followers.Total)
}

// SpotifyLiked prints liked songs from --offset. With --all it requests pages one after another
// until a short page signals the end of the library.
func (r *Runner) SpotifyLiked(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	offset := int(cmd.Int("offset"))
	if offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", shared.ErrInvalidArgument)
	}
	if err := r.authenticated(ctx, cmd); err != nil {
		return err
	}

	pages, err := r.likedPages(ctx, offset, cmd.Bool("all"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if len(pages) == 1 {
			return r.writeJSON(pages[0], cmd.Bool("pretty"))
		}
		return r.writeJSON(pages, cmd.Bool("pretty"))
	}

	listing := formatter.LikedListing(pages...)
	if !cmd.Bool("all") && pages[len(pages)-1].HasMore() {
		defer r.writePlain("\nMore songs available: --offset %d\n", pages[len(pages)-1].NextOffset())
	}
	return r.render(format, listing, cmd.String("output"))
}

func (r *Runner) likedPages(ctx context.Context, offset int, all bool) ([]*services.SpotifyPaginatedTracks, error) {
	var pages []*services.SpotifyPaginatedTracks
	for {
		page, err := r.client.LikedSongs(ctx, offset)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)

		if !all || !page.HasMore() {
			return pages, nil
		}
		offset = page.NextOffset()
		r.logger.Debug("fetching next page", "offset", offset)
	}
}

// SpotifyPlaylists prints every playlist of the current user.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticated(ctx, cmd); err != nil {
		return err
	}

	playlists, err := r.client.Playlists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.PlaylistsToText(playlists))
}

// SpotifyTracks prints the first page of a playlist's tracks.
func (r *Runner) SpotifyTracks(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.authenticated(ctx, cmd); err != nil {
		return err
	}

	page, err := r.client.PlaylistTracks(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}
	return r.render(format, formatter.PlaylistListing(r.lookupPlaylist(ctx, id), page), cmd.String("output"))
}

// lookupPlaylist finds the playlist's metadata for the listing title, falling back to the bare id.
func (r *Runner) lookupPlaylist(ctx context.Context, id string) services.SpotifySimplePlaylist {
	playlists, err := r.client.Playlists(ctx)
	if err != nil {
		r.logger.Warn("failed to look up playlist name", "id", id, "error", err)
		return services.SpotifySimplePlaylist{ID: id}
	}
	for _, p := range playlists.Items {
		if p.ID == id {
			return p
		}
	}
	return services.SpotifySimplePlaylist{ID: id}
}

func (r *Runner) render(format formatter.Format, listing formatter.Listing, output string) error {
	if output != "" {
		path, err := formatter.WriteFile(format, listing, output)
		if err != nil {
			return err
		}
		r.logger.Infof("listing written to %v with %v tracks", path, len(listing.Tracks))
		return r.writePlain("✓ Wrote %d tracks to %s\n", len(listing.Tracks), path)
	}

	data, err := formatter.Render(format, listing)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}
