package main

import (
	"complaintdesk/backend/internal/auth"
	"complaintdesk/backend/internal/changefeed"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app is what every subcommand works against.
type app struct {
	Storage    storage.Storage
	Complaints *complaint.Service
	Verifier   *auth.TokenVerifier
	// Redis is nil when the server is unreachable; watch needs it.
	Redis *redis.Client
	Out   io.Writer
}

// newRootCmd builds the command tree. open is called once, before the first
// subcommand runs.
func newRootCmd(open func(ctx context.Context) (*app, error)) *cobra.Command {
	var a *app

	rootCmd := &cobra.Command{
		Use:          "admin",
		Short:        "Administer the complaint desk",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = open(cmd.Context())
			return err
		},
	}

	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue a session token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkUserID(args[0]); err != nil {
				return err
			}
			tok, err := a.Verifier.Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.Out, tok)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", config.DefaultSessionTTL, "token lifetime")

	grantCmd := &cobra.Command{
		Use:   "grant-admin [user-id]",
		Short: "Give a user the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setRole(cmd.Context(), args[0], models.RoleAdmin)
		},
	}

	revokeCmd := &cobra.Command{
		Use:   "revoke-admin [user-id]",
		Short: "Return a user to the student role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setRole(cmd.Context(), args[0], models.RoleStudent)
		},
	}

	var student, status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List complaints, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.list(cmd.Context(), student, models.Status(status))
		},
	}
	listCmd.Flags().StringVar(&student, "student", "", "only complaints of this student")
	listCmd.Flags().StringVar(&status, "status", "", "only complaints in this status")

	var actor, remarks string
	transitionCmd := &cobra.Command{
		Use:   "transition [complaint-id] [status]",
		Short: "Change the status of a complaint",
		Long:  `Moves a complaint to Open, "In Progress" or Resolved on behalf of an administrator, recording the change in its history and queueing the student notification.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.transition(cmd.Context(), args[0], models.Status(args[1]), actor, remarks)
		},
	}
	transitionCmd.Flags().StringVar(&actor, "actor", "", "user id of the administrator making the change")
	transitionCmd.Flags().StringVar(&remarks, "remarks", "", "remarks shown to the student")
	_ = transitionCmd.MarkFlagRequired("actor")

	historyCmd := &cobra.Command{
		Use:   "history [complaint-id]",
		Short: "Show the status history of a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.history(cmd.Context(), args[0])
		},
	}

	var owner string
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print complaint changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, changefeed.Filter{Table: changefeed.TableComplaints, OwnerID: owner})
		},
	}
	watchCmd.Flags().StringVar(&owner, "owner", "", "only changes to this student's complaints")

	rootCmd.AddCommand(tokenCmd, grantCmd, revokeCmd, listCmd, transitionCmd, historyCmd, watchCmd)
	return rootCmd
}

// admin is the identity the CLI acts with for read commands.
var admin = auth.Identity{UserID: "cli", Role: models.RoleAdmin}

func (a *app) setRole(ctx context.Context, userID string, role models.Role) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if err := a.Storage.SetRole(ctx, userID, role); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "User %s is now %s.\n", userID, role)
	return nil
}

func (a *app) list(ctx context.Context, student string, status models.Status) error {
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	var (
		list []models.Complaint
		err  error
	)
	if student != "" {
		list, err = a.Complaints.ListForOwner(ctx, admin, student)
	} else {
		list, err = a.Complaints.ListAll(ctx, admin)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCATEGORY\tSTUDENT\tCREATED\tTITLE")
	for _, c := range list {
		if status != "" && c.Status != status {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.Category, c.StudentID, c.CreatedAt.Format(time.RFC3339), c.Title)
	}
	return tw.Flush()
}

func (a *app) transition(ctx context.Context, id string, status models.Status, actor, remarks string) error {
	if err := checkUserID(actor); err != nil {
		return err
	}
	role, err := a.Storage.GetRole(ctx, actor)
	if err != nil {
		return err
	}
	updated, err := a.Complaints.Transition(ctx, auth.Identity{UserID: actor, Role: role}, id, status, remarks)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Complaint %s is now %s.\n", updated.ID, updated.Status)
	return nil
}

func (a *app) history(ctx context.Context, id string) error {
	entries, err := a.Complaints.History(ctx, admin, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.Out, "No status changes yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tFROM\tTO\tBY\tREMARKS")
	for _, e := range entries {
		remarks := ""
		if e.Remarks != nil {
			remarks = *e.Remarks
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.UpdatedAt.Format(time.RFC3339), e.OldStatus, e.NewStatus, e.UpdatedBy, remarks)
	}
	return tw.Flush()
}

// watch prints events from the Redis channel until ctx ends.
func (a *app) watch(ctx context.Context, filter changefeed.Filter) error {
	if a.Redis == nil {
		return errors.New("watch needs Redis")
	}

	hub := changefeed.NewHub()
	go hub.Run(ctx)
	sub := changefeed.NewChannelSubscriber("cli-watch", filter, config.ChangeFeedBuffer)
	if !hub.Subscribe(sub) {
		return errors.New("change feed is not running")
	}

	broker := changefeed.NewRedisBroker(a.Redis, hub)
	errCh := make(chan error, 1)
	go func() { errCh <- broker.Listen(ctx) }()

	return printEvents(ctx, a.Out, sub.Events(), errCh)
}

func printEvents(ctx context.Context, out io.Writer, events <-chan changefeed.Event, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			line := fmt.Sprintf("%s %-6s %s owner=%s", evt.At.Format(time.RFC3339), strings.ToUpper(string(evt.Kind)), evt.ComplaintID, evt.OwnerID)
			if evt.Complaint != nil {
				data, _ := json.Marshal(map[string]any{"status": evt.Complaint.Status, "title": evt.Complaint.Title})
				line += " " + string(data)
			}
			fmt.Fprintln(out, line)
		}
	}
}

// checkUserID rejects ids the profile directory cannot hold.
func checkUserID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("user id %q is not a UUID", id)
	}
	return nil
}
