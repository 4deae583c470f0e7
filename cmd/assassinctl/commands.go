package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/avvvet/assassin-services/internal/gamesvc/service"
)

// run opens the backend for one command and closes it afterwards.
func run(cfg *ctlConfig, fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
		defer cancel()

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.close()
		return fn(ctx, cmd, args, b)
	}
}

// report prints the outcome and turns a refused action into a failing exit status.
func report(cmd *cobra.Command, out service.Outcome, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Message)
	if !out.OK() {
		return fmt.Errorf("refused (%s)", out.Code)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type action func(ctx context.Context, cmd *cobra.Command, args []string, b *backend) error

func addCommands(root *cobra.Command, cfg *ctlConfig) {
	root.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the admin dashboard",
			Args:  cobra.NoArgs,
			RunE: run(cfg, func(ctx context.Context, cmd *cobra.Command, _ []string, b *backend) error {
				d, err := b.admin.Dashboard(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, d)
			}),
		},
		&cobra.Command{
			Use:   "leaderboard",
			Short: "List the teams, alive first",
			Args:  cobra.NoArgs,
			RunE: run(cfg, func(ctx context.Context, cmd *cobra.Command, _ []string, b *backend) error {
				board, err := b.game.Leaderboard(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, board)
			}),
		},
		&cobra.Command{
			Use:   "phase <pre|live|post|forced>",
			Short: "Change the game phase",
			Args:  cobra.ExactArgs(1),
			RunE: run(cfg, rearming(func(ctx context.Context, cmd *cobra.Command, args []string, b *backend) error {
				out, err := b.admin.ChangePhase(ctx, args[0])
				return report(cmd, out, err)
			})),
		},
		&cobra.Command{
			Use:   "threshold <n>",
			Short: "Set how many votes decide a kill claim",
			Args:  cobra.MatchAll(cobra.ExactArgs(1), numberArg),
			RunE: run(cfg, func(ctx context.Context, cmd *cobra.Command, args []string, b *backend) error {
				n, _ := strconv.Atoi(args[0])
				out, err := b.admin.SetThreshold(ctx, n)
				return report(cmd, out, err)
			}),
		},
		&cobra.Command{
			Use:   "free-for-all <on|off>",
			Short: "Switch free-for-all mode",
			Args:  cobra.MatchAll(cobra.ExactArgs(1), switchArg),
			RunE: run(cfg, func(ctx context.Context, cmd *cobra.Command, args []string, b *backend) error {
				enabled, _ := parseSwitch(args[0])
				out, err := b.admin.SetFreeForAll(ctx, enabled)
				return report(cmd, out, err)
			}),
		},
		scheduleCmd(cfg),
		startRoundCmd(cfg),
		&cobra.Command{
			Use:   "assign-targets",
			Short: "Draw a new target cycle among the alive teams",
			Args:  cobra.NoArgs,
			RunE: run(cfg, func(ctx context.Context, cmd *cobra.Command, _ []string, b *backend) error {
				out, err := b.game.AssignTargets(ctx)
				return report(cmd, out, err)
			}),
		},
		idCmd(cfg, "accept-team <team-id>", "Accept a pending team", (*service.AdminService).AcceptTeam),
		idCmd(cfg, "toggle-team <team-id>", "Kill or revive a team", (*service.AdminService).ToggleTeam),
		idCmd(cfg, "toggle-player <player-id>", "Kill or revive a player", (*service.AdminService).TogglePlayer),
		&cobra.Command{
			Use:   "decide <claim-id> <approve|reject>",
			Short: "Force the decision on a pending kill claim",
			Args:  cobra.MatchAll(cobra.ExactArgs(2), decisionArg),
			RunE: run(cfg, func(ctx context.Context, cmd *cobra.Command, args []string, b *backend) error {
				out, err := b.admin.ForceVoteDecision(ctx, args[0], args[1] == "approve")
				return report(cmd, out, err)
			}),
		},
		wipeCmd(cfg),
		&cobra.Command{
			Use:   "restore-schedule",
			Short: "Ask the game service to rebuild its round timers",
			Args:  cobra.NoArgs,
			RunE: run(cfg, func(_ context.Context, cmd *cobra.Command, _ []string, b *backend) error {
				reply, err := b.restoreSchedule(cfg.timeout)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
				if !reply.OK {
					return errors.New("restore failed")
				}
				return nil
			}),
		},
		hashPasswordCmd(),
	)
}

// rearming follows a successful action with a schedule refresh of the running game service.
func rearming(fn action) action {
	return func(ctx context.Context, cmd *cobra.Command, args []string, b *backend) error {
		if err := fn(ctx, cmd, args, b); err != nil {
			return err
		}
		reply, err := b.restoreSchedule(cmdTimeout(ctx))
		switch {
		case err != nil:
			cmd.PrintErrf("warning: round timers not refreshed: %v\n", err)
		case !reply.OK:
			cmd.PrintErrf("warning: round timers not refreshed: %s\n", reply.Message)
		}
		return nil
	}
}

func cmdTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline)
	}
	return 5 * time.Second
}

func idCmd(cfg *ctlConfig, use, short string, fn func(*service.AdminService, context.Context, string) (service.Outcome, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: run(cfg, func(ctx context.Context, cmd *cobra.Command, args []string, b *backend) error {
			out, err := fn(b.admin, ctx, args[0])
			return report(cmd, out, err)
		}),
	}
}

func scheduleCmd(cfg *ctlConfig) *cobra.Command {
	var start, end string
	var s, e time.Time
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Set the start and end of the current round",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			var err error
			if s, err = time.Parse(time.RFC3339, start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if e, err = time.Parse(time.RFC3339, end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			return nil
		},
		RunE: run(cfg, rearming(func(ctx context.Context, cmd *cobra.Command, _ []string, b *backend) error {
			out, err := b.admin.SetSchedule(ctx, service.ScheduleRequest{Start: s.UTC(), End: e.UTC()})
			return report(cmd, out, err)
		})),
	}
	cmd.Flags().StringVar(&start, "start", "", "round start, RFC 3339")
	cmd.Flags().StringVar(&end, "end", "", "round end, RFC 3339")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func startRoundCmd(cfg *ctlConfig) *cobra.Command {
	var increment bool
	cmd := &cobra.Command{
		Use:   "start-round",
		Short: "Settle the round now and draw new targets",
		Args:  cobra.NoArgs,
		RunE: run(cfg, rearming(func(ctx context.Context, cmd *cobra.Command, _ []string, b *backend) error {
			out, err := b.admin.StartRound(ctx, increment)
			return report(cmd, out, err)
		})),
	}
	cmd.Flags().BoolVar(&increment, "increment", true, "move on to the next round number")
	return cmd
}

func wipeCmd(cfg *ctlConfig) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every team, player and claim and reset the game",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if !yes {
				return errors.New("wipe deletes all game data; run again with --yes to confirm")
			}
			return nil
		},
		RunE: run(cfg, func(ctx context.Context, cmd *cobra.Command, _ []string, b *backend) error {
			out, err := b.admin.Wipe(ctx)
			return report(cmd, out, err)
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}

func numberArg(_ *cobra.Command, args []string) error {
	if _, err := strconv.Atoi(args[0]); err != nil {
		return fmt.Errorf("%q is not a number", args[0])
	}
	return nil
}

func switchArg(_ *cobra.Command, args []string) error {
	_, err := parseSwitch(args[0])
	return err
}

func decisionArg(_ *cobra.Command, args []string) error {
	if args[1] != "approve" && args[1] != "reject" {
		return fmt.Errorf("decision must be approve or reject, got %q", args[1])
	}
	return nil
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password is empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}
