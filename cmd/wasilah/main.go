package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrehmanbee22seecs/wasilah2/internal/app"
	"github.com/mrehmanbee22seecs/wasilah2/internal/config"
	"github.com/mrehmanbee22seecs/wasilah2/internal/db"
	"github.com/mrehmanbee22seecs/wasilah2/internal/domain"
	"github.com/mrehmanbee22seecs/wasilah2/internal/engine"
	"github.com/mrehmanbee22seecs/wasilah2/internal/repo"
	"github.com/mrehmanbee22seecs/wasilah2/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "wasilah",
	Short: "Wasilah CLI",
	Long: `Wasilah moderates community project and event submissions.
Core concepts:
- Workspace: a .wasilah directory holding the SQLite database; wasilah.yml next to it configures categories and review rules.
- Submissions: project or event proposals with a shared lifecycle: draft -> pending -> approved/rejected.
- Visibility: approved submissions are public; drafts and pending ones are visible only to their owner and admins.
- Ownership: submitters edit their own drafts and submit them for review; from pending onward only admins decide.
- Reviews: every approve/reject is recorded with reviewer, time, and reason; rejections can be reopened by admins.
- API keys: server credentials minted locally (wasilah apikey create) and presented via X-Api-Key.
- Event log: an audit diary of every change, view with 'wasilah log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("WASILAH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("admin", false, "act with admin privileges")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("admin", rootCmd.PersistentFlags().Lookup("admin"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(submissionCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage workspace config",
		Long:  "wasilah.yml holds the category catalog, review rules, and auth toggles for this workspace.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default wasilah.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.InitWorkspace(viper.GetString("workspace"), name)
			if err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "wasilah", "service name")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate wasilah.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func submissionCmd() *cobra.Command {
	sub := &cobra.Command{
		Use:   "submission",
		Short: "Manage submissions",
		Long:  "Create, inspect, and edit project or event submissions. The first argument picks the kind: project or event.",
	}
	sub.AddCommand(submissionCreateCmd())
	sub.AddCommand(submissionListCmd())
	sub.AddCommand(submissionShowCmd())
	sub.AddCommand(submissionUpdateCmd())
	sub.AddCommand(submissionSubmitCmd())
	sub.AddCommand(submissionCountsCmd())
	return sub
}

func submissionCreateCmd() *cobra.Command {
	var id string
	var in domain.SubmissionInput
	var volunteers, attendees int
	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("volunteers-needed") {
				in.VolunteersNeeded = &volunteers
			}
			if cmd.Flags().Changed("max-attendees") {
				in.MaxAttendees = &attendees
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSubmission(ctx, kind, engine.CreateOptions{ID: id, Input: in}, actorFromFlags())
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "submission id (generated when empty)")
	cmd.Flags().StringVar(&in.Status, "status", "", "initial status: draft or pending (default pending)")
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Category, "category", "", "category")
	cmd.Flags().StringVar(&in.Location, "location", "", "location")
	cmd.Flags().StringVar(&in.StartDate, "start-date", "", "project start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.EndDate, "end-date", "", "project end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.Timeline, "timeline", "", "project timeline")
	cmd.Flags().IntVar(&volunteers, "volunteers-needed", 0, "volunteers needed")
	cmd.Flags().StringSliceVar(&in.Requirements, "requirement", nil, "project requirement (repeatable)")
	cmd.Flags().StringSliceVar(&in.Objectives, "objective", nil, "project objective (repeatable)")
	cmd.Flags().StringVar(&in.EventDate, "event-date", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.EventTime, "event-time", "", "event time")
	cmd.Flags().StringVar(&in.RegistrationDeadline, "registration-deadline", "", "registration deadline (YYYY-MM-DD)")
	cmd.Flags().IntVar(&attendees, "max-attendees", 0, "maximum attendees")
	cmd.Flags().StringSliceVar(&in.Agenda, "agenda", nil, "event agenda item (repeatable)")
	cmd.Flags().StringVar(&in.ContactEmail, "contact-email", "", "contact email")
	cmd.Flags().StringVar(&in.ContactPhone, "contact-phone", "", "contact phone")
	cmd.Flags().StringVar(&in.SubmitterName, "submitter-name", "", "submitter name")
	cmd.Flags().StringVar(&in.SubmitterEmail, "submitter-email", "", "submitter email")
	return cmd
}

func submissionListCmd() *cobra.Command {
	var status, category, submittedBy string
	var limit int
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("kind required: project or event")
			}
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSubmissions(ctx, kind, repo.SubmissionFilters{
					Viewer:      &domain.Actor{ID: viper.GetString("actor-id"), IsAdmin: true},
					Status:      status,
					Category:    category,
					SubmittedBy: submittedBy,
					Limit:       limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Category", "Submitted By", "Created"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Title, s.Status, s.Category, s.SubmittedBy, s.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&submittedBy, "submitted-by", "", "owner filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func submissionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show a submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s, err := r.GetSubmission(ctx, kind, args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func submissionUpdateCmd() *cobra.Command {
	var title, description, category, location string
	var startDate, endDate, timeline string
	var volunteers int
	var requirements, objectives []string
	var eventDate, eventTime, registrationDeadline string
	var attendees int
	var agenda []string
	var contactEmail, contactPhone, submitterName, submitterEmail string
	var status, adminComments, rejectionReason string
	var expectedVersion int64
	cmd := &cobra.Command{
		Use:   "update <kind> <id>",
		Short: "Update a submission",
		Long:  "Only flags you pass are applied. Owners may edit their own drafts; admins may edit any submission. Pass an empty value to clear an optional field.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			patch := engine.UpdatePatch{
				Title:                changedString(cmd, "title", title),
				Description:          changedString(cmd, "description", description),
				Category:             changedString(cmd, "category", category),
				Location:             changedString(cmd, "location", location),
				StartDate:            changedString(cmd, "start-date", startDate),
				EndDate:              changedString(cmd, "end-date", endDate),
				Timeline:             changedString(cmd, "timeline", timeline),
				Requirements:         changedStringSlice(cmd, "requirement", requirements),
				Objectives:           changedStringSlice(cmd, "objective", objectives),
				EventDate:            changedString(cmd, "event-date", eventDate),
				EventTime:            changedString(cmd, "event-time", eventTime),
				RegistrationDeadline: changedString(cmd, "registration-deadline", registrationDeadline),
				Agenda:               changedStringSlice(cmd, "agenda", agenda),
				ContactEmail:         changedString(cmd, "contact-email", contactEmail),
				ContactPhone:         changedString(cmd, "contact-phone", contactPhone),
				SubmitterName:        changedString(cmd, "submitter-name", submitterName),
				SubmitterEmail:       changedString(cmd, "submitter-email", submitterEmail),
				Status:               changedString(cmd, "status", status),
				AdminComments:        changedString(cmd, "admin-comments", adminComments),
				RejectionReason:      changedString(cmd, "rejection-reason", rejectionReason),
				ExpectedVersion:      expectedVersion,
			}
			if cmd.Flags().Changed("volunteers-needed") {
				if volunteers == 0 {
					patch.ClearVolunteersNeeded = true
				} else {
					patch.VolunteersNeeded = &volunteers
				}
			}
			if cmd.Flags().Changed("max-attendees") {
				if attendees == 0 {
					patch.ClearMaxAttendees = true
				} else {
					patch.MaxAttendees = &attendees
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateSubmission(ctx, kind, args[1], patch, actorFromFlags())
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&location, "location", "", "location")
	cmd.Flags().StringVar(&startDate, "start-date", "", "project start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "project end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&timeline, "timeline", "", "project timeline")
	cmd.Flags().IntVar(&volunteers, "volunteers-needed", 0, "volunteers needed (0 clears)")
	cmd.Flags().StringSliceVar(&requirements, "requirement", nil, "replace project requirements")
	cmd.Flags().StringSliceVar(&objectives, "objective", nil, "replace project objectives")
	cmd.Flags().StringVar(&eventDate, "event-date", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&eventTime, "event-time", "", "event time")
	cmd.Flags().StringVar(&registrationDeadline, "registration-deadline", "", "registration deadline (YYYY-MM-DD)")
	cmd.Flags().IntVar(&attendees, "max-attendees", 0, "maximum attendees (0 clears)")
	cmd.Flags().StringSliceVar(&agenda, "agenda", nil, "replace event agenda")
	cmd.Flags().StringVar(&contactEmail, "contact-email", "", "contact email")
	cmd.Flags().StringVar(&contactPhone, "contact-phone", "", "contact phone")
	cmd.Flags().StringVar(&submitterName, "submitter-name", "", "submitter name")
	cmd.Flags().StringVar(&submitterEmail, "submitter-email", "", "submitter email")
	cmd.Flags().StringVar(&status, "status", "", "target status")
	cmd.Flags().StringVar(&adminComments, "admin-comments", "", "admin comments (admins only, empty clears)")
	cmd.Flags().StringVar(&rejectionReason, "rejection-reason", "", "rejection reason (admins only, empty clears)")
	cmd.Flags().Int64Var(&expectedVersion, "expected-version", 0, "fail unless the stored version matches")
	return cmd
}

func submissionSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <kind> <id>",
		Short: "Submit a draft for review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			pending := string(domain.StatusPending)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateSubmission(ctx, kind, args[1], engine.UpdatePatch{Status: &pending}, actorFromFlags())
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func submissionCountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counts <kind>",
		Short: "Count submissions by status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				counts, err := r.CountSubmissionsByStatus(ctx, kind)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				fmt.Printf("%ss:\n", kind)
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func reviewCmd() *cobra.Command {
	rev := &cobra.Command{
		Use:   "review",
		Short: "Moderate submissions",
		Long:  "Approve or reject pending submissions and inspect their review history. Review commands always act as an admin; --actor-id names the reviewer.",
	}
	rev.AddCommand(reviewApproveCmd())
	rev.AddCommand(reviewRejectCmd())
	rev.AddCommand(reviewHistoryCmd())
	return rev
}

func reviewApproveCmd() *cobra.Command {
	var comments string
	cmd := &cobra.Command{
		Use:   "approve <kind> <id>",
		Short: "Approve a pending submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.ApproveSubmission(ctx, kind, args[1], comments, reviewActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&comments, "comments", "", "reviewer comments")
	return cmd
}

func reviewRejectCmd() *cobra.Command {
	var reason, comments string
	cmd := &cobra.Command{
		Use:   "reject <kind> <id>",
		Short: "Reject a pending submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.RejectSubmission(ctx, kind, args[1], reason, comments, reviewActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	cmd.Flags().StringVar(&comments, "comments", "", "reviewer comments")
	return cmd
}

func reviewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <kind> <id>",
		Short: "Review history for a submission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListReviews(ctx, kind, args[1])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Decision", "Reviewer", "Reason", "Comments", "Created"})
				for _, rv := range items {
					tw.AppendRow(table.Row{rv.Decision, rv.ReviewerID, stringOr(rv.RejectionReason), stringOr(rv.Comments), rv.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workspace status",
		Long:  "See the moderation queue at a glance: counts by status for both submission kinds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projects, err := e.Repo.CountSubmissionsByStatus(ctx, domain.KindProject)
				if err != nil {
					return err
				}
				events, err := e.Repo.CountSubmissionsByStatus(ctx, domain.KindEvent)
				if err != nil {
					return err
				}
				out := map[string]any{
					"service":  e.Config.Service.Name,
					"projects": projects,
					"events":   events,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Service: %s\n", e.Config.Service.Name)
				fmt.Println("Projects:")
				for status, c := range projects {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Println("Events:")
				for status, c := range events {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys authenticate server clients. The raw key is printed once at creation; only its hash is stored.",
	}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyRevokeCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	var admin bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			rawKey := "wsk_" + uuid.NewString()
			k := domain.APIKey{
				ID:        uuid.NewString(),
				ActorID:   actorID,
				Name:      name,
				KeyHash:   repo.HashAPIKey(rawKey),
				IsAdmin:   admin,
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertAPIKey(ctx, nil, k); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": k.ID, "actor_id": k.ActorID, "key": rawKey, "is_admin": k.IsAdmin})
				}
				fmt.Printf("id: %s\nactor: %s\nadmin: %v\nkey: %s\n", k.ID, k.ActorID, k.IsAdmin, rawKey)
				fmt.Println("store the key now; it cannot be shown again")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as (default --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().BoolVar(&admin, "grant-admin", false, "key carries admin privileges")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Admin", "Created", "Revoked"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.IsAdmin, k.CreatedAt, stringOr(k.RevokedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.RevokeAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, kind, submissionID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, kind, submissionID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&kind, "kind", "", "submission kind filter")
	cmd.Flags().StringVar(&submissionID, "submission-id", "", "submission id filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			e, err := app.OpenEngine(workspace)
			if err != nil {
				return err
			}
			defer e.DB.Close()
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("WASILAH_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("WASILAH_JWT_SECRET is required for bearer auth")
			}
			if e.Config != nil {
				authCfg.AllowLegacyActorHeader = e.Config.Auth.AllowLegacyActorHeader
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Wasilah API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, err := app.OpenEngine(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer e.DB.Close()
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	e, err := app.OpenEngine(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer e.DB.Close()
	return fn(ctx, e.Repo)
}

// actorFromFlags builds the caller identity for engine calls. The CLI
// runs against a local database the operator already owns, so --admin
// is honored as claimed.
func actorFromFlags() *domain.Actor {
	id := strings.TrimSpace(viper.GetString("actor-id"))
	if id == "" {
		return nil
	}
	return &domain.Actor{ID: id, IsAdmin: viper.GetBool("admin")}
}

// reviewActor is actorFromFlags with admin implied; moderation commands
// only make sense for an admin.
func reviewActor() *domain.Actor {
	id := strings.TrimSpace(viper.GetString("actor-id"))
	if id == "" {
		id = "local-user"
	}
	return &domain.Actor{ID: id, IsAdmin: true}
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func changedString(cmd *cobra.Command, name, val string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &val
}

func changedStringSlice(cmd *cobra.Command, name string, val []string) *[]string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &val
}

func stringOr(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
