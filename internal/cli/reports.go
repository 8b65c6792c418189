package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"adaptive-quiz-service/internal/bank"
	"adaptive-quiz-service/internal/domain"
)

// NewValidateCmd parses a question file and prints how many questions each tier holds.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <questions-file>",
		Short: "Check a question file and print per-tier counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bank.LoadFile(args[0])
			if err != nil {
				return err
			}
			printBankSummary(cmd.OutOrStdout(), b)
			return nil
		},
	}
}

func printBankSummary(out io.Writer, b *bank.Bank) {
	counts := b.CountByDifficulty()
	fmt.Fprintf(out, "%d questions, %d topics\n", b.Len(), len(b.Topics()))
	for d := domain.MinDifficulty; d <= domain.MaxDifficulty; d++ {
		fmt.Fprintf(out, "  difficulty %d: %d\n", d, counts[d])
	}
	for d := domain.MinDifficulty; d <= domain.MaxDifficulty; d++ {
		if counts[d] == 0 {
			fmt.Fprintf(out, "warning: difficulty %d has no questions; sessions that reach it end early\n", d)
		}
	}
}

// NewLeaderboardCmd prints the best score of each player.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the top players",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath, true)
			if err != nil {
				return err
			}
			be, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()
			if limit <= 0 {
				limit = cfg.Stats.LeaderboardLimit
			}
			board, err := be.stats.TopAccounts(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printLeaderboard(cmd.OutOrStdout(), board)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of players to show (defaults to stats.leaderboardLimit)")
	return cmd
}

// NewStatsCmd prints a player's accuracy per topic.
func NewStatsCmd(configPath *string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print a player's accuracy by topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath, true)
			if err != nil {
				return err
			}
			be, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()
			acc, err := be.stats.TopicAccuracy(cmd.Context(), userID)
			if err != nil {
				return err
			}
			printAccuracy(cmd.OutOrStdout(), acc)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printLeaderboard(out io.Writer, board []domain.LeaderboardEntry) {
	if len(board) == 0 {
		fmt.Fprintln(out, "  no results yet")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, e := range board {
		fmt.Fprintf(tw, "  %d.\t%s\t%d\n", i+1, e.Username, e.MaxScore)
	}
	_ = tw.Flush()
}

func printAccuracy(out io.Writer, acc []domain.TopicAccuracy) {
	if len(acc) == 0 {
		fmt.Fprintln(out, "  no answers recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, a := range acc {
		fmt.Fprintf(tw, "  %s\t%d/%d\t%.0f%%\n", a.Topic, a.Correct, a.Total, a.Percent())
	}
	_ = tw.Flush()
}
