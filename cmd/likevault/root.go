package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/kimhsiao/likevault/internal/config"
	"github.com/kimhsiao/likevault/internal/db"
	"github.com/kimhsiao/likevault/internal/download"
	apperrors "github.com/kimhsiao/likevault/internal/errors"
	"github.com/kimhsiao/likevault/internal/importer"
	"github.com/kimhsiao/likevault/internal/jobs"
	"github.com/kimhsiao/likevault/internal/likes"
	"github.com/kimhsiao/likevault/internal/logging"
	"github.com/kimhsiao/likevault/internal/models"
	"github.com/kimhsiao/likevault/internal/source"
)

// cli carries state shared by every command.
type cli struct {
	envFile string
	cfg     *config.Config

	// sources replaces the Twitter adapter in tests.
	sources source.Factory
}

func newRootCmd() *cobra.Command {
	return (&cli{}).command()
}

func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "likevault",
		Short:         "Archive liked posts and their media locally",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.envFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			initLogging(cfg)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env", ".env", "dotenv file to load before the environment")

	root.AddCommand(
		c.runCmd(),
		c.enqueueCmd(),
		c.statusCmd(),
		c.likesCmd(),
		c.sessionCmd(),
	)
	return root
}

// withApp opens the application for the duration of fn. The context is
// cancelled on SIGINT or SIGTERM.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, c.cfg, c.sources)
	if err != nil {
		logging.Error("Failed to open application", err, nil)
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		logging.Error("Command failed", err, map[string]interface{}{"command": cmd.Name()})
		return err
	}
	return nil
}

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Resume every persisted job and wait for them to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				n, err := a.scheduler.Restore(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %d job(s)\n", n)
				a.drain(ctx)
				return nil
			})
		},
	}
}

func (c *cli) enqueueCmd() *cobra.Command {
	var userID, sessionID string
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Download a user's likes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				job, err := enqueueDownload(ctx, a, userID, sessionID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", job.ID)
				a.drain(ctx)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "source user id whose likes are archived")
	cmd.Flags().StringVar(&sessionID, "session", "default", "stored credential to authenticate with")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// enqueueDownload admits a download job unless one for the same user is
// already queued, running or persisted from an earlier run.
func enqueueDownload(ctx context.Context, a *app, userID, sessionID string) (*models.Job, error) {
	match := download.ForUser(userID)
	if a.scheduler.IsActive(match) {
		return nil, apperrors.Newf(apperrors.ErrJobActive, "a download for user %s is already running", userID)
	}
	persisted, err := a.repo.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	for _, j := range persisted {
		if match(j) {
			return nil, apperrors.Newf(apperrors.ErrJobActive, "job %s for user %s is pending, resume it with run", j.ID, userID)
		}
	}
	return a.scheduler.Enqueue(ctx, download.JobType, download.Args{UserID: userID, SessionID: sessionID})
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List persisted jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				list, err := a.repo.ListJobs(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTYPE\tUSER\tCURSOR\tCREATED")
				for _, j := range list {
					fmt.Fprintln(w, jobRow(j))
				}
				return w.Flush()
			})
		},
	}
}

// jobRow formats one status line. Unreadable args show as "?".
func jobRow(j *models.Job) string {
	user, cursor := "?", "?"
	var da download.Args
	if err := jobs.DecodeArgs(j, &da); err == nil {
		user, cursor = da.UserID, da.Cursor
	}
	return strings.Join([]string{j.ID, string(j.Type), user, cursor, j.CreatedAtTime().Format(time.RFC3339)}, "\t")
}

func (c *cli) likesCmd() *cobra.Command {
	var (
		userID string
		limit  int
		query  string
		tags   []string
		asHTML bool
	)
	cmd := &cobra.Command{
		Use:   "likes",
		Short: "Print a user's archived likes, oldest first, or search them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if query != "" {
					resp, err := a.repo.SearchPosts(ctx, &db.SearchOptions{
						Query:    query,
						Limit:    limit,
						LikedBy:  userID,
						Hashtags: tags,
					})
					if err != nil {
						return err
					}
					for _, r := range resp.Results {
						fmt.Fprintf(out, "%s\t%s\n", r.Post.ID, r.Snippet)
					}
					return nil
				}

				ledger, err := likes.Ledger(ctx, a.repo.Queries, userID, limit)
				if err != nil {
					return err
				}
				renderPost := importer.RenderText
				if asHTML {
					renderPost = importer.RenderHTML
				}
				for _, l := range ledger {
					p, err := a.repo.GetPost(ctx, l.PostID)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\t%s\n", p.ID, renderPost(p))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "source user id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to print (0 for all likes)")
	cmd.Flags().StringVar(&query, "query", "", "full-text query over liked posts")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "restrict --query to posts with these hashtags")
	cmd.Flags().BoolVar(&asHTML, "html", false, "escape post text for HTML output")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (c *cli) sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage stored source credentials",
	}

	var (
		id, access, refresh string
		expiresIn           time.Duration
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Store an OAuth2 token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if access == "" && refresh == "" {
				return apperrors.New(apperrors.ErrInvalid, "an access or refresh token is required")
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}
				if expiresIn > 0 {
					tok.Expiry = time.Now().Add(expiresIn)
				}
				if err := a.sessions.Save(ctx, id, tok); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored session %s\n", id)
				return nil
			})
		},
	}
	set.Flags().StringVar(&id, "id", "default", "session id")
	set.Flags().StringVar(&access, "access-token", "", "OAuth2 access token")
	set.Flags().StringVar(&refresh, "refresh-token", "", "OAuth2 refresh token")
	set.Flags().DurationVar(&expiresIn, "expires-in", 0, "access token lifetime (0 refreshes on first rejection)")

	cmd.AddCommand(set)
	return cmd
}
