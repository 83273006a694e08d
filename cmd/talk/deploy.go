package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-talk/internal/config"
	"github.com/teslashibe/go-talk/internal/log"
	"github.com/teslashibe/go-talk/pkg/discord"
)

func newDeployCmd(opts *rootOptions) *cobra.Command {
	var guildID string

	cmd := &cobra.Command{
		Use:   "deploy-commands",
		Short: "Register the bot's slash commands with Discord",
		Long:  "Registers /talk and /leave. Commands are global unless --guild (or DISCORD_GUILD_ID) names a guild, which applies instantly.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(config.KeyDiscordToken, config.KeyDiscordClientID)
			if err != nil {
				return err
			}
			if guildID == "" {
				guildID = cfg.Discord.GuildID
			}

			dg, err := discord.NewSession(cfg.Discord.BotToken)
			if err != nil {
				return err
			}
			registered, err := discord.DeployCommands(dg, cfg.Discord.ClientID, guildID)
			if err != nil {
				return err
			}

			scope := "globally"
			if guildID != "" {
				scope = "in guild " + guildID
			}
			log.L().Info("commands deployed", "count", len(registered), "guild", guildID)
			for _, c := range registered {
				fmt.Fprintf(cmd.OutOrStdout(), "/%s registered %s\n", c.Name, scope)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&guildID, "guild", "", "register commands in this guild only")
	return cmd
}
