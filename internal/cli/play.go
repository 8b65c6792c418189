package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/domain"
)

var errInputClosed = errors.New("input closed")

// NewPlayCmd runs a quiz on the terminal against the configured stores.
func NewPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the adaptive quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath, true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			be, err := openBackend(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()
			service, err := be.newService(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			p := newPlayer(service, cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Stats.LeaderboardLimit)
			return p.run(ctx)
		},
	}
}

type player struct {
	service *app.QuizService
	in      *bufio.Scanner
	out     io.Writer
	top     int
}

func newPlayer(service *app.QuizService, in io.Reader, out io.Writer, top int) *player {
	return &player{service: service, in: bufio.NewScanner(in), out: out, top: top}
}

func (p *player) run(ctx context.Context) error {
	userID, name, err := p.signIn(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Welcome, %s! %d questions in the bank.\n", name, p.service.Bank().Len())

	for {
		result, err := p.playRound(ctx, userID)
		if err != nil {
			return err
		}
		if err := p.report(ctx, userID, result); err != nil {
			return err
		}
		again, err := p.confirm("Play again? [y/N]: ")
		if err != nil || !again {
			fmt.Fprintln(p.out, "Bye!")
			return nil
		}
		if _, err := p.service.Restart(ctx, userID); err != nil {
			return err
		}
	}
}

// signIn logs in, offering to register when the credentials match no account.
func (p *player) signIn(ctx context.Context) (string, string, error) {
	for {
		name, err := p.prompt("Username: ")
		if err != nil {
			return "", "", err
		}
		password, err := p.prompt("Password: ")
		if err != nil {
			return "", "", err
		}
		userID, err := p.service.Authenticate(ctx, name, password)
		if err == nil {
			return userID, name, nil
		}
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			return "", "", err
		}

		register, err := p.confirm(fmt.Sprintf("Login failed. Register %q as a new player? [y/N]: ", name))
		if err != nil {
			return "", "", err
		}
		if !register {
			continue
		}
		userID, err = p.service.Register(ctx, name, password)
		switch {
		case err == nil:
			return userID, name, nil
		case errors.Is(err, domain.ErrDuplicateUsername):
			fmt.Fprintln(p.out, "That username is taken, try again.")
		case errors.Is(err, domain.ErrInvalidCredentials):
			fmt.Fprintln(p.out, "Username and password must not be empty.")
		default:
			return "", "", err
		}
	}
}

func (p *player) playRound(ctx context.Context, userID string) (domain.SessionResult, error) {
	for n := 1; ; n++ {
		next, err := p.service.Next(ctx, userID)
		if errors.Is(err, domain.ErrSessionAlreadyComplete) {
			// A finished session left in a shared store.
			if _, err := p.service.Restart(ctx, userID); err != nil {
				return domain.SessionResult{}, err
			}
			n--
			continue
		}
		if err != nil {
			return domain.SessionResult{}, err
		}
		if next.Completed {
			return *next.Result, nil
		}

		q := next.Question
		fmt.Fprintf(p.out, "\nQuestion %d (%s, difficulty %d)\n%s\n", n, q.Topic, q.Difficulty, q.Prompt)
		for i, opt := range q.Options {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt)
		}
		choice, err := p.choose(q.Options)
		if err != nil {
			return domain.SessionResult{}, err
		}
		outcome, err := p.service.Answer(ctx, userID, choice)
		if err != nil {
			return domain.SessionResult{}, err
		}
		if outcome.Correct {
			fmt.Fprintf(p.out, "Correct! Score: %d/%d\n", outcome.Score, outcome.Answered)
		} else {
			fmt.Fprintf(p.out, "Wrong. The correct answer was: %s. Score: %d/%d\n", outcome.CorrectAnswer, outcome.Score, outcome.Answered)
		}
	}
}

// choose reads an option by number or by its exact text.
func (p *player) choose(options []string) (string, error) {
	for {
		raw, err := p.prompt(fmt.Sprintf("Your answer [1-%d]: ", len(options)))
		if err != nil {
			return "", err
		}
		if i, err := strconv.Atoi(raw); err == nil && i >= 1 && i <= len(options) {
			return options[i-1], nil
		}
		for _, opt := range options {
			if strings.EqualFold(opt, raw) {
				return opt, nil
			}
		}
		fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(options))
	}
}

func (p *player) report(ctx context.Context, userID string, result domain.SessionResult) error {
	fmt.Fprintf(p.out, "\nQuiz complete! Final score: %d/%d\n", result.Score, result.Total)

	board, err := p.service.Leaderboard(ctx, p.top)
	if err != nil {
		return err
	}
	fmt.Fprintln(p.out, "\nLeaderboard")
	printLeaderboard(p.out, board)

	acc, err := p.service.TopicAccuracy(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Fprintln(p.out, "\nYour accuracy by topic")
	printAccuracy(p.out, acc)
	return nil
}

func (p *player) prompt(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *player) confirm(label string) (bool, error) {
	raw, err := p.prompt(label)
	if err != nil {
		return false, err
	}
	raw = strings.ToLower(raw)
	return raw == "y" || raw == "yes", nil
}
