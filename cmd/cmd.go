// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// listingFlags are shared by commands that print Spotify data.
func listingFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		configFlag(),
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Render tracks as csv, markdown or text",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the rendered listing to a file instead of stdout",
		},
	}
	return append(flags, extra...)
}

// setupCommand initializes local state
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file or initialize the session database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the built-in template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the session database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// serveCommand runs the control plane
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the control-plane backend (token exchange and Spotify proxy)",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides server.host and server.port",
			},
			&cli.DurationFlag{
				Name:  "purge-interval",
				Usage: "How often expired sessions are removed",
				Value: time.Hour,
			},
		},
		Action: r.Serve,
	}
}

// authCommand manages the client session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Log in to Spotify through the control plane",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize in the browser and establish a session",
				Flags: []cli.Flag{
					configFlag(),
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser redirect",
						Value: 2 * time.Minute,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "End the session on the control plane and forget it locally",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Check whether the stored session is still valid",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// spotifyCommand reads the user's library through the control plane
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify library operations",
		Commands: []*cli.Command{
			{
				Name:  "me",
				Usage: "Show the current user's profile",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.SpotifyMe,
			},
			{
				Name:  "liked",
				Usage: "List liked songs, one page at a time",
				Flags: listingFlags(
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Offset of the first song",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Keep fetching pages until the library is exhausted",
					},
				),
				Action: r.SpotifyLiked,
			},
			{
				Name:   "playlists",
				Usage:  "List playlists",
				Flags:  listingFlags(),
				Action: r.SpotifyPlaylists,
			},
			{
				Name:  "tracks",
				Usage: "List the first page of tracks in a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags:  listingFlags(),
				Action: r.SpotifyTracks,
			},
		},
	}
}

// tuiCommand launches the dashboard
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the interactive dashboard",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where dashboard logs are written",
				Value: "./tmp/rhythmiq-tui.log",
			},
		},
		Action: r.TUI,
	}
}
