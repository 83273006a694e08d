package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-talk/internal/config"
	"github.com/teslashibe/go-talk/internal/log"
	"github.com/teslashibe/go-talk/pkg/audioconv"
	"github.com/teslashibe/go-talk/pkg/discord"
	"github.com/teslashibe/go-talk/pkg/playback"
	"github.com/teslashibe/go-talk/pkg/realtime"
	"github.com/teslashibe/go-talk/pkg/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(config.KeyOpenAIAPIKey, config.KeyDiscordToken)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, log.L())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	converter := cfg.Converter(logger)

	factory, track, err := playerFactory(cfg.Playback, logger)
	if err != nil {
		return err
	}

	var srv *web.Server
	bot, err := discord.New(discord.Config{
		Token:         cfg.Discord.BotToken,
		ApplicationID: cfg.Discord.ClientID,
		GuildID:       cfg.Discord.GuildID,
		Realtime:      cfg.RealtimeOptions(converter),
		Converter:     converter,
		Player:        factory,
		SpeakerOnly:   cfg.Discord.SpeakerOnly,
		OnStateChange: func(_, _ realtime.State) {
			if srv != nil {
				srv.Notify()
			}
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	if cfg.Web.Enabled {
		webOpts := []web.Option{web.WithLogger(logger)}
		if track != nil {
			webOpts = append(webOpts, web.WithTrack(track.Track()))
		}
		srv = web.NewServer(cfg.Web.Port, func() any { return bot.Status() }, webOpts...)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(ctx)
	})
	if srv != nil {
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	logger.Info("talk running", "playback", cfg.Playback.Backend, "converter", cfg.Audio.Converter, "web", cfg.Web.Enabled)
	return g.Wait()
}

// playerFactory maps the playback backend to a per-conversation player.
// The track backend shares one track so web listeners survive conversations.
func playerFactory(pc playback.Config, logger *slog.Logger) (discord.PlayerFactory, *playback.TrackPlayer, error) {
	switch pc.Backend {
	case playback.BackendDiscord:
		return nil, nil, nil
	case playback.BackendTrack:
		track, err := playback.NewTrackPlayer(audioconv.Playback, logger)
		if err != nil {
			return nil, nil, err
		}
		return func(*discordgo.VoiceConnection) (playback.Player, error) {
			return track, nil
		}, track, nil
	default:
		return func(*discordgo.VoiceConnection) (playback.Player, error) {
			return playback.NewPlayer(pc, logger)
		}, nil, nil
	}
}
