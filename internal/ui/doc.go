// Package ui implements the terminal dashboard using bubbletea's Elm architecture.
//
// The dashboard is a guarded route: [Model.Init] asks the session [Guard] whether the user is
// authenticated and only then fetches protected content. Until the check resolves the model
// renders [LoadingView]; a failed check renders [LoginView] instead of any account data.
//
// Views:
//  1. [LikedView] : profile header and liked songs, paged in increments of [services.PageSize]
//  2. [PlaylistListView] : the user's playlists
//  3. [TrackListView] : first page of tracks in the selected playlist
//
// Liked songs are loaded incrementally. At most one page request is in flight and a response for
// an offset other than the pending one is dropped, so offsets never overlap.
package ui
