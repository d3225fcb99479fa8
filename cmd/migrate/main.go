package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/chrissnell/wastealarm/internal/log"
	"github.com/chrissnell/wastealarm/internal/storage/sqlite"
	"github.com/chrissnell/wastealarm/pkg/migrate"
	"github.com/fatih/color"
)

const usage = `Usage: migrate -db <path> [flags] <command> [arg]

Commands:
  status          show applied and pending migrations (default)
  up              apply all pending migrations
  down [n]        roll back the n most recent migrations (default 1)
  to <version>    migrate up or down to version; 0 removes the schema

Flags:
`

func main() {
	var (
		dbPath  = flag.String("db", "wastealarm.db", "Path to the SQLite alarm database")
		dryRun  = flag.Bool("dry-run", false, "Print the plan without applying it")
		debug   = flag.Bool("debug", false, "Turn on debugging output")
		noColor = flag.Bool("no-color", false, "Disable colored output")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	command := flag.Arg(0)
	if command == "" {
		command = "status"
	}

	// Only "up" may create a database; everything else works on an existing one.
	db, err := sqlite.OpenDB(*dbPath, command != "up")
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	ctx := context.Background()
	migrator := sqlite.NewMigrator(db, log.Named("migrate"))

	if command == "status" {
		st, err := migrator.Status(ctx)
		if err != nil {
			log.Fatalf("failed to read migration status: %v", err)
		}
		printStatus(os.Stdout, *dbPath, st)
		return
	}

	target, err := resolveTarget(ctx, migrator, command, flag.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	plan, err := migrator.Plan(ctx, target)
	if err != nil {
		log.Fatalf("failed to plan migration: %v", err)
	}
	printPlan(os.Stdout, plan)

	if *dryRun || len(plan.Steps) == 0 {
		return
	}
	if err := migrator.Apply(ctx, plan); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	color.New(color.FgGreen).Fprintf(os.Stdout, "schema now at version %d\n", plan.To)
}

// resolveTarget turns a command and its argument into a target version
func resolveTarget(ctx context.Context, m *migrate.Migrator, command, arg string) (int, error) {
	switch command {
	case "up":
		return migrate.Latest, nil

	case "to":
		if arg == "" {
			return 0, fmt.Errorf("to needs a target version")
		}
		v, err := strconv.Atoi(arg)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid target version %q", arg)
		}
		return v, nil

	case "down":
		n := 1
		if arg != "" {
			var err error
			if n, err = strconv.Atoi(arg); err != nil || n <= 0 {
				return 0, fmt.Errorf("invalid number of migrations %q", arg)
			}
		}
		return m.DownTarget(ctx, n)
	}

	return 0, fmt.Errorf("unknown command %q", command)
}

func printStatus(w io.Writer, path string, st migrate.Status) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s: schema version %d of %d\n", path, st.Current, st.Latest)

	applied := color.New(color.FgGreen)
	for _, a := range st.Applied {
		applied.Fprintf(w, "  applied  %3d  %s\n", a.Version, a.AppliedAt.Local().Format("2006-01-02 15:04:05"))
	}

	pending := color.New(color.FgYellow)
	for _, m := range st.Pending {
		pending.Fprintf(w, "  pending  %3d  %s\n", m.Version, m.Name)
	}

	if st.UpToDate() {
		fmt.Fprintln(w, "up to date")
	}
}

func printPlan(w io.Writer, plan migrate.Plan) {
	if len(plan.Steps) == 0 {
		fmt.Fprintf(w, "nothing to do, schema at version %d\n", plan.From)
		return
	}

	fmt.Fprintf(w, "version %d -> %d\n", plan.From, plan.To)
	for _, s := range plan.Steps {
		arrow, c := "up  ", color.New(color.FgCyan)
		if !s.Up {
			arrow, c = "down", color.New(color.FgMagenta)
		}
		c.Fprintf(w, "  %s %3d  %s\n", arrow, s.Migration.Version, s.Migration.Name)
	}
}
