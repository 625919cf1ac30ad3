// Command slotctl resolves coach slots offline from a YAML snapshot.
//
// Commands:
//
//	slots    List evaluated slots for a date range
//	check    Check whether a single start time is bookable
//	status   Show current availability and the next open slot
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wolfman30/coaching-platform/internal/slots"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

const dateLayout = "2006-01-02"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "slotctl: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  slotctl <command> -snapshot <file.yaml> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  slots    -start <date|RFC3339> [-end ...] [-duration N] [-exclude ID] [-format table|json|ics]")
	fmt.Fprintln(w, "  check    -start <RFC3339> [-duration N] [-exclude ID]")
	fmt.Fprintln(w, "  status")
}

type options struct {
	snapshot string
	start    string
	end      string
	duration int
	exclude  string
	format   string
	verbose  bool
}

func parseOptions(name string, args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.snapshot, "snapshot", "", "path to the YAML snapshot")
	fs.StringVar(&opts.start, "start", "", "range start (YYYY-MM-DD or RFC3339)")
	fs.StringVar(&opts.end, "end", "", "range end (defaults to start)")
	fs.IntVar(&opts.duration, "duration", 0, "session length in minutes (0 = coach default)")
	fs.StringVar(&opts.exclude, "exclude", "", "session id to ignore")
	fs.StringVar(&opts.format, "format", "table", "output format: table, json or ics")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.snapshot == "" {
		return options{}, errors.New("-snapshot is required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return nil
	}
	cmd := args[0]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage(stdout)
		return nil
	}
	if cmd != "slots" && cmd != "check" && cmd != "status" {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}

	opts, err := parseOptions(cmd, args[1:], stderr)
	if err != nil {
		return err
	}
	snap, err := loadSnapshot(opts.snapshot)
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	engine := slots.NewEngine(slots.Config{
		Availability: snap,
		Sessions:     snap,
		Logger:       logging.NewWithWriter(level, stderr),
		Now:          func() time.Time { return snap.Now },
	})
	coachID := snap.Profile.CoachID

	switch cmd {
	case "slots":
		q, err := buildQuery(coachID, opts)
		if err != nil {
			return err
		}
		result, err := engine.GetAvailableSlots(ctx, q)
		if err != nil {
			return err
		}
		return writeSlots(stdout, coachID, result, opts.format, snap.Now, snap.Profile.Location())
	case "check":
		start, err := time.Parse(time.RFC3339, opts.start)
		if err != nil {
			return fmt.Errorf("-start must be RFC3339: %w", err)
		}
		duration := opts.duration
		if duration == 0 {
			duration = snap.Profile.DefaultSessionDuration
		}
		check, err := engine.IsSlotAvailable(ctx, coachID, start, duration, opts.exclude)
		if err != nil {
			return err
		}
		return writeJSON(stdout, check)
	default:
		status, err := engine.GetCurrentAvailabilityStatus(ctx, coachID)
		if err != nil {
			return err
		}
		return writeJSON(stdout, status)
	}
}

func buildQuery(coachID string, opts options) (slots.SlotQuery, error) {
	if opts.start == "" {
		return slots.SlotQuery{}, errors.New("-start is required")
	}
	endValue := opts.end
	if endValue == "" {
		endValue = opts.start
	}
	start, startDate, err := parseBound(opts.start)
	if err != nil {
		return slots.SlotQuery{}, err
	}
	end, endDate, err := parseBound(endValue)
	if err != nil {
		return slots.SlotQuery{}, err
	}
	if startDate != endDate {
		return slots.SlotQuery{}, errors.New("-start and -end must both be dates or both be RFC3339")
	}
	return slots.SlotQuery{
		CoachID:          coachID,
		StartDate:        start,
		EndDate:          end,
		CalendarDates:    startDate,
		Duration:         opts.duration,
		ExcludeSessionID: opts.exclude,
	}, nil
}

func parseBound(value string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC3339", value)
	}
	return t, false, nil
}

func writeSlots(w io.Writer, coachID string, result []slots.AvailableSlot, format string, stamp time.Time, loc *time.Location) error {
	switch strings.ToLower(format) {
	case "json":
		return writeJSON(w, result)
	case "ics":
		return slots.WriteCalendar(w, coachID, result, stamp)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "START\tEND\tMIN\tAVAILABLE\tREASON")
		for _, s := range result {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n",
				s.Start.In(loc).Format("2006-01-02 15:04 MST"),
				s.End.In(loc).Format("15:04"),
				s.Duration, s.IsAvailable, s.ConflictReason)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
