package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"countdown/internal/event"
	"countdown/internal/ics"
	"countdown/internal/importer"
	appLog "countdown/internal/log"
	"countdown/internal/model"
	"countdown/internal/present"
	"countdown/internal/recurrence"
	"countdown/internal/web"
	"countdown/internal/widget"
)

// completeIDs offers record ids with their titles for shell completion.
func completeIDs(a *app) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		if a.svc == nil {
			if err := a.open(cmd.Context()); err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			defer a.close()
		}
		events, err := a.svc.List(cmd.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		out := make([]string, 0, len(events))
		for _, ev := range events {
			out = append(out, ev.ID+"\t"+ev.Title)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the widget refresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// --listen overrides the config file when set.
			if listen != "" {
				a.cfg.Listen = listen
			}
			appLog.Info("effective config",
				"listen", a.cfg.Listen,
				"timezone", a.loc.String(),
				"refresh", a.cfg.RefreshCron,
				"widget_event", a.cfg.Widget.EventID,
				"capture", a.cfg.Widget.Capture.Enabled,
			)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			refresher, err := widget.NewRefresher(a.svc, a.cfg, localURL(a.cfg.Listen, "/widget"))
			if err != nil {
				return err
			}
			srv, err := web.NewServer(a.cfg, a.svc)
			if err != nil {
				return err
			}
			srv.SetSnapshotSource(refresher.Last)

			ln, err := srv.Listen()
			if err != nil {
				return err
			}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ctx, ln) }()

			done, err := refresher.Start(ctx)
			if err != nil {
				cancel()
				return err
			}

			err = <-errCh
			cancel()
			<-done
			appLog.Info("countdown exiting")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// localURL turns a listen address into a URL reachable from this host.
func localURL(listen, path string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + path
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + path
}

func newListCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events, pinned first, then by next occurrence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := a.today()
			var entries []present.Entry
			if all {
				events, err := a.svc.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, ev := range events {
					entries = append(entries, present.Entry{Event: ev, Metrics: recurrence.ResolveEvent(ev, now)})
				}
			} else {
				var err error
				entries, err = a.svc.Present(cmd.Context(), now)
				if err != nil {
					return err
				}
			}
			renderList(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include expired one-off events, in storage order")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:               "show <id>",
		Short:             "Show one event with its upcoming occurrences",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeIDs(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			now := a.today()
			upcoming := recurrence.Upcoming(ev.AnchorDate, ev.Repeat, now, a.cfg.UpcomingCount)
			renderDetail(cmd.OutOrStdout(), ev, recurrence.ResolveEvent(ev, now), upcoming)
			return nil
		},
	}
}

// eventFlags are the editable fields shared by add and edit.
type eventFlags struct {
	title  string
	date   string
	repeat string
	color  string
	pinned bool
	notes  string
	image  string
}

func (f *eventFlags) register(cmd *cobra.Command, withTitle bool) {
	if withTitle {
		cmd.Flags().StringVar(&f.title, "title", "", "Event title")
	}
	cmd.Flags().StringVar(&f.date, "date", "", "Target date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.repeat, "repeat", "none", "Repeat rule: none, weekly, monthly, yearly")
	cmd.Flags().StringVar(&f.color, "color", "", "Color tag, e.g. #FF0000")
	cmd.Flags().BoolVar(&f.pinned, "pin", false, "Pin the event to the top")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&f.image, "image", "", "Path of an image to attach")
}

// apply overlays the flags the user set onto in.
func (f *eventFlags) apply(cmd *cobra.Command, in *event.Input) error {
	changed := cmd.Flags().Changed
	if changed("title") {
		in.Title = f.title
	}
	if changed("date") {
		d, err := time.Parse(model.DateLayout, f.date)
		if err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", f.date)
		}
		in.AnchorDate = d
	}
	if changed("repeat") {
		in.Repeat = model.ParseRepeatRule(f.repeat)
	}
	if changed("color") {
		in.ColorTag = f.color
	}
	if changed("pin") {
		in.Pinned = f.pinned
	}
	if changed("notes") {
		if f.notes == "" {
			in.Notes = nil
		} else {
			notes := f.notes
			in.Notes = &notes
		}
	}
	if changed("image") {
		if f.image == "" {
			in.Image = nil
		} else {
			data, err := os.ReadFile(f.image)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			in.Image = data
		}
	}
	return nil
}

func newAddCmd(a *app) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("date") {
				return errors.New("--date is required")
			}
			in := event.Input{Title: args[0], ColorTag: a.cfg.DefaultColor}
			if err := f.apply(cmd, &in); err != nil {
				return err
			}
			if err := event.ValidateForm(in, a.today()); err != nil {
				return err
			}
			ev, err := a.svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", ev.Title, ev.ID)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var f eventFlags
	cmd := &cobra.Command{
		Use:               "edit <id>",
		Short:             "Change fields of an event",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeIDs(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			cur, err := a.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			in := event.Input{
				Title:      cur.Title,
				AnchorDate: cur.AnchorDate,
				Repeat:     cur.Repeat,
				ColorTag:   cur.ColorTag,
				Pinned:     cur.Pinned,
				Notes:      cur.Notes,
				Image:      cur.Image,
			}
			if err := f.apply(cmd, &in); err != nil {
				return err
			}
			// The date rule only applies when the schedule is being changed.
			if cmd.Flags().Changed("date") || cmd.Flags().Changed("repeat") {
				if err := event.ValidateForm(in, a.today()); err != nil {
					return err
				}
			}
			ev, err := a.svc.Update(cmd.Context(), cur.ID, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", ev.Title, ev.ID)
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func newPinCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:               "pin <id>",
		Short:             "Pin or unpin an event",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeIDs(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := a.svc.TogglePin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := "Unpinned"
			if ev.Pinned {
				state = "Pinned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, ev.Title)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:               "delete <id>",
		Aliases:           []string{"rm"},
		Short:             "Delete an event permanently",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeIDs(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import events from a YAML or ICS file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			if format == "" {
				format = formatFromPath(args[0])
			}

			im := importer.New(a.svc, a.cfg.DefaultColor)
			var (
				n   int
				err error
			)
			switch format {
			case "yaml":
				n, err = im.ImportYAML(cmd.Context(), r)
			case "ics":
				n, err = im.ImportICS(cmd.Context(), r)
			default:
				return fmt.Errorf("unknown import format %q", format)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d events\n", n)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Input format: yaml or ics (default: from file extension)")
	return cmd
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ics", ".ical", ".ifb":
		return "ics"
	default:
		return "yaml"
	}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		all    bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events as an ICS calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := a.today()
			var events []model.Event
			if all {
				var err error
				events, err = a.svc.List(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				entries, err := a.svc.Present(cmd.Context(), now)
				if err != nil {
					return err
				}
				for _, e := range entries {
					events = append(events, e.Event)
				}
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return ics.Export(w, events, now)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include expired one-off events")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func newWidgetCmd(a *app) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "widget",
		Short: "Print the widget snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var snap widget.Snapshot
			if cached {
				path := a.cfg.Widget.SnapshotPath
				if path == "" {
					return errors.New("widget.snapshot_path is not configured")
				}
				var err error
				if snap, err = widget.ReadSnapshot(path); err != nil {
					return err
				}
			} else {
				schedule, err := cron.ParseStandard(a.cfg.RefreshCron)
				if err != nil {
					return err
				}
				now := a.today()
				if snap, err = widget.Build(cmd.Context(), a.svc, a.cfg.Widget.EventID, now, schedule.Next(now)); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Read the snapshot last written by serve instead of building one")
	return cmd
}
