package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/repository"
)

const ticketListLimit = 50

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Inspect ticket queues from the command line",
}

var ticketsUnassignedCmd = &cobra.Command{
	Use:   "unassigned",
	Short: "List tickets waiting for an operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTicketRepo(func(ctx context.Context, repo repository.TicketRepository) error {
			tickets, err := repo.ListUnassigned(ctx, ticketListLimit)
			if err != nil {
				return err
			}
			printTickets(tickets)
			return nil
		})
	},
}

var ticketsOperatorCmd = &cobra.Command{
	Use:   "operator <id>",
	Short: "List active tickets assigned to an operator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		operatorID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("operator id must be numeric: %w", err)
		}
		return withTicketRepo(func(ctx context.Context, repo repository.TicketRepository) error {
			tickets, err := repo.ListByOperator(ctx, operatorID, true, ticketListLimit)
			if err != nil {
				return err
			}
			printTickets(tickets)
			return nil
		})
	},
}

func withTicketRepo(fn func(context.Context, repository.TicketRepository) error) error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	return fn(ctx, repository.NewTicketRepository(pg.PoolHandle()))
}

func printTickets(tickets []domain.Ticket) {
	if len(tickets) == 0 {
		fmt.Println("no tickets")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tSTATUS\tPRIORITY\tCATEGORY\tCREATED\tDESCRIPTION")
	for _, t := range tickets {
		desc := t.Description
		if len(desc) > 48 {
			desc = desc[:45] + "..."
		}
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\t%s\n",
			t.Number, t.Status, t.Priority, t.Category,
			t.CreatedAt.Format("2006-01-02 15:04"), desc)
	}
	w.Flush()
}

func init() {
	ticketsCmd.AddCommand(ticketsUnassignedCmd)
	ticketsCmd.AddCommand(ticketsOperatorCmd)
}
