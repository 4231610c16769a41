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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"collabforge/internal/app"
	"collabforge/internal/db"
	"collabforge/internal/engine"
	"collabforge/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "collab",
	Short: "Collabforge CLI",
	Long: `Collabforge runs two-author collaboration contracts.
Every contract names two authors and a revenue split; nothing about it
changes without both signatures. Propose with 'collab create', confirm
with 'collab confirm', renegotiate the split with 'collab share request',
and submit work for partner approval with 'collab material add'. Every
accepted change lands in an append-only history ('collab history').`,
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
	viper.SetEnvPrefix("COLLABFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "acting author identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(confirmCmd())
	rootCmd.AddCommand(rejectCmd())
	rootCmd.AddCommand(pauseCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(shareCmd())
	rootCmd.AddCommand(materialCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(likeCmd())
	rootCmd.AddCommand(galleryCmd())
	rootCmd.AddCommand(feedCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func createCmd() *cobra.Command {
	var partner, title, description, cover string
	var share int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Propose a collab contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCollab(ctx, actorID(), engine.CreateCollabOptions{
					PartnerID:     partner,
					Title:         title,
					Description:   description,
					ProposerShare: share,
					CoverURL:      cover,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&partner, "partner", "", "invited author id")
	cmd.Flags().StringVar(&title, "title", "", "contract title")
	cmd.Flags().StringVar(&description, "description", "", "contract description")
	cmd.Flags().IntVar(&share, "share", 0, "proposer share percentage (default from config)")
	cmd.Flags().StringVar(&cover, "cover", "", "cover image URL")
	_ = cmd.MarkFlagRequired("partner")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your collabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListUserCollabs(ctx, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Your share", "Pending"})
				for _, v := range items {
					tw.AppendRow(table.Row{v.ID, v.Title, v.Status, fmt.Sprintf("%d%%", v.ViewerShare), strings.Join(v.PendingActions, ",")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <collab-id>",
		Short: "Show one collab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetCollabView(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(v)
			})
		},
	}
}

func updateCmd() *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "update <collab-id>",
		Short: "Update title or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("description") {
				return errors.New("--title or --description is required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var out any
				if cmd.Flags().Changed("title") {
					v, err := e.UpdateCollabTitle(ctx, args[0], actorID(), title)
					if err != nil {
						return err
					}
					out = v
				}
				if cmd.Flags().Changed("description") {
					v, err := e.UpdateCollabDescription(ctx, args[0], actorID(), description)
					if err != nil {
						return err
					}
					out = v
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	return cmd
}

func lifecycleCmd(use, short string, run func(engine.Engine, context.Context, string, string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := run(e, ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
}

func confirmCmd() *cobra.Command {
	return lifecycleCmd("confirm <collab-id>", "Confirm participation", func(e engine.Engine, ctx context.Context, id, actor string) (any, error) {
		return e.ConfirmCollab(ctx, id, actor)
	})
}

func rejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <collab-id>",
		Short: "Reject a pending invitation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RejectCollab(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Println("invitation rejected")
				return nil
			})
		},
	}
}

func pauseCmd() *cobra.Command {
	return lifecycleCmd("pause <collab-id>", "Pause the collab", func(e engine.Engine, ctx context.Context, id, actor string) (any, error) {
		return e.PauseCollab(ctx, id, actor)
	})
}

func resumeCmd() *cobra.Command {
	return lifecycleCmd("resume <collab-id>", "Resume a paused collab", func(e engine.Engine, ctx context.Context, id, actor string) (any, error) {
		return e.ResumeCollab(ctx, id, actor)
	})
}

func deleteCmd() *cobra.Command {
	del := &cobra.Command{Use: "delete", Short: "Two-phase contract deletion"}
	del.AddCommand(lifecycleCmd("request <collab-id>", "Request deletion", func(e engine.Engine, ctx context.Context, id, actor string) (any, error) {
		return e.RequestDeleteCollab(ctx, id, actor)
	}))
	del.AddCommand(lifecycleCmd("confirm <collab-id>", "Confirm the partner's delete request", func(e engine.Engine, ctx context.Context, id, actor string) (any, error) {
		return e.ConfirmDeleteCollab(ctx, id, actor)
	}))
	del.AddCommand(lifecycleCmd("cancel <collab-id>", "Cancel your delete request", func(e engine.Engine, ctx context.Context, id, actor string) (any, error) {
		return e.CancelDeleteRequest(ctx, id, actor)
	}))
	return del
}

func shareCmd() *cobra.Command {
	shr := &cobra.Command{Use: "share", Short: "Renegotiate the revenue split"}

	var newShare int
	req := &cobra.Command{
		Use:   "request <collab-id>",
		Short: "Propose a new split (your percentage)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.RequestShareChange(ctx, args[0], actorID(), newShare)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	req.Flags().IntVar(&newShare, "share", 0, "your new share percentage (1-99)")
	_ = req.MarkFlagRequired("share")
	shr.AddCommand(req)

	shr.AddCommand(lifecycleCmd("confirm <collab-id>", "Accept the proposed split", func(e engine.Engine, ctx context.Context, id, actor string) (any, error) {
		return e.ConfirmShareChange(ctx, id, actor)
	}))
	shr.AddCommand(lifecycleCmd("reject <collab-id>", "Decline the proposed split", func(e engine.Engine, ctx context.Context, id, actor string) (any, error) {
		return e.RejectShareChange(ctx, id, actor)
	}))
	return shr
}

func materialCmd() *cobra.Command {
	mat := &cobra.Command{Use: "material", Short: "Manage collab materials"}

	var title, description, preview string
	add := &cobra.Command{
		Use:   "add <collab-id>",
		Short: "Submit a material for partner approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AddMaterial(ctx, args[0], actorID(), engine.AddMaterialOptions{
					Title:       title,
					Description: description,
					PreviewURL:  preview,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "material title")
	add.Flags().StringVar(&description, "description", "", "material description")
	add.Flags().StringVar(&preview, "preview", "", "preview URL")
	_ = add.MarkFlagRequired("title")
	mat.AddCommand(add)

	mat.AddCommand(&cobra.Command{
		Use:   "list <collab-id>",
		Short: "List materials grouped by approval state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				board, err := e.CollabMaterials(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Owner", "Status"})
				for _, m := range board.Gallery {
					tw.AppendRow(table.Row{m.ID, m.Title, m.OwnerID, "approved"})
				}
				for _, m := range board.AwaitingYou {
					tw.AppendRow(table.Row{m.ID, m.Title, m.OwnerID, "awaiting you"})
				}
				for _, m := range board.AwaitingPartner {
					tw.AppendRow(table.Row{m.ID, m.Title, m.OwnerID, "awaiting partner"})
				}
				for _, m := range board.Rejected {
					tw.AppendRow(table.Row{m.ID, m.Title, m.OwnerID, "rejected"})
				}
				tw.Render()
				return nil
			})
		},
	})

	mat.AddCommand(&cobra.Command{
		Use:   "approve <material-id>",
		Short: "Approve a pending material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.ApproveMaterial(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	})

	var reason string
	rej := &cobra.Command{
		Use:   "reject <material-id>",
		Short: "Reject a pending material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.RejectMaterial(ctx, args[0], actorID(), reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	rej.Flags().StringVar(&reason, "reason", "", "rejection reason")
	mat.AddCommand(rej)

	mat.AddCommand(&cobra.Command{
		Use:   "delete <collab-id> <material-id>",
		Short: "Delete a material",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteMaterial(ctx, args[1], actorID(), args[0]); err != nil {
					return err
				}
				fmt.Println("material deleted")
				return nil
			})
		},
	})

	mat.AddCommand(&cobra.Command{
		Use:   "cover <collab-id> <material-id>",
		Short: "Promote an approved material to collab cover",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.SetMaterialAsCover(ctx, args[1], actorID(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	})

	return mat
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <collab-id>",
		Short: "Show the contract ledger, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.CollabHistory(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Actor", "Action", "Details"})
				for _, h := range items {
					details := ""
					if len(h.Details) > 0 {
						b, _ := json.Marshal(h.Details)
						details = string(b)
					}
					tw.AppendRow(table.Row{h.CreatedAt, h.ActorID, h.ActionType, details})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func likeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like <collab-id>",
		Short: "Toggle your like on a collab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				liked, count, err := e.LikeCollab(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"liked": liked, "likes_count": count})
			})
		},
	}
}

func galleryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gallery",
		Short: "Browse the public gallery of active collabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListPublicCollabs(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Authors", "Split", "Likes"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Title, c.Author1ID + " / " + c.Author2ID, fmt.Sprintf("%d/%d", c.Author1Share, c.Author2Share()), c.LikesCount})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func feedCmd() *cobra.Command {
	var cursor int64
	var limit int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show your notification feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Feed(ctx, actorID(), cursor, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "When", "Kind", "Collab", "Actor"})
				for _, evt := range items {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Kind, evt.CollabID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&cursor, "cursor", 0, "return events after this id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events")
	return cmd
}

func profileCmd() *cobra.Command {
	prof := &cobra.Command{Use: "profile", Short: "Manage your author profile"}

	prof.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show your profile and notification count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.GetAuthor(ctx, actorID())
				if err != nil {
					return err
				}
				count, err := e.NotificationsCount(ctx, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"author": a, "notifications": count})
			})
		},
	})

	var name, avatar string
	var enabled, disabled bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Update display name, avatar, or availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			if enabled && disabled {
				return errors.New("--enable-collabs and --disable-collabs are mutually exclusive")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var upd engine.ProfileUpdate
				if cmd.Flags().Changed("name") {
					upd.DisplayName = &name
				}
				if cmd.Flags().Changed("avatar") {
					upd.AvatarURL = &avatar
				}
				if enabled {
					v := true
					upd.CollabEnabled = &v
				}
				if disabled {
					v := false
					upd.CollabEnabled = &v
				}
				a, err := e.UpdateProfile(ctx, actorID(), upd)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	set.Flags().StringVar(&name, "name", "", "display name")
	set.Flags().StringVar(&avatar, "avatar", "", "avatar URL")
	set.Flags().BoolVar(&enabled, "enable-collabs", false, "accept new collab invitations")
	set.Flags().BoolVar(&disabled, "disable-collabs", false, "refuse new collab invitations")
	prof.AddCommand(set)

	return prof
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Mint a new API key (shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, rec, err := e.MintAPIKey(ctx, actorID(), name)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": rec.ID, "name": rec.Name, "key": key})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	ak.AddCommand(create)

	ak.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAPIKeys(ctx, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})

	return ak
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.Bootstrap(cmd.Context(), viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer rt.Close()
			if addr == "" {
				addr = rt.Config.Server.Addr
			}
			if basePath == "" {
				basePath = rt.Config.Server.BasePath
			}
			authCfg := server.AuthConfig{
				JWTSecret:        rt.Config.Auth.JWTSecret,
				AllowActorHeader: rt.Config.Auth.AllowActorHeader,
			}
			if secret := os.Getenv("COLLABFORGE_JWT_SECRET"); secret != "" {
				authCfg.JWTSecret = secret
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowActorHeader {
				return fmt.Errorf("COLLABFORGE_JWT_SECRET is required when the actor header is disabled")
			}
			handler, err := server.New(server.Config{Engine: rt.Engine, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Collabforge API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func actorID() string {
	return viper.GetString("actor-id")
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	rt, err := app.Bootstrap(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.EnsureActor(ctx, actorID()); err != nil {
		return err
	}
	return fn(ctx, rt.Engine)
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
