// Command seqdb builds, inspects and queries sequence database snapshots.
//
// Usage:
//
//	seqdb build -wd <dir> -part-prefix <prefix> [-meta-suffix .meta.tsv] [-seq-suffix .fasta] -out <dir>
//	seqdb info -wd <dir> -snapshot <dir> [-detailed]
//	seqdb query -wd <dir> -snapshot <dir>
//
// The build subcommand expects part_def.txt, and optionally pango_def.txt,
// next to the reference in the working directory. The query subcommand reads one JSON
// query per line from stdin.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/seqdb"
	"github.com/hupe1980/seqdb/query"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "seqdb:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: seqdb <build|info|query> [flags]")
}

func openDatabase(wd string, verbose bool) (*seqdb.Database, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := seqdb.NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return seqdb.Open(wd, seqdb.WithLogger(logger))
}

func loadDescriptors(db *seqdb.Database, wd string) error {
	pf, err := os.Open(filepath.Join(wd, "part_def.txt"))
	if err != nil {
		return err
	}
	defer pf.Close()
	if err := db.LoadPartitioning(pf); err != nil {
		return err
	}

	gf, err := os.Open(filepath.Join(wd, "pango_def.txt"))
	if err == nil {
		defer gf.Close()
		if err := db.LoadPangoDef(gf); err != nil {
			return err
		}
	}
	return nil
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	wd := fs.String("wd", ".", "working directory with reference_genome.txt, pango_alias.txt, part_def.txt")
	partPrefix := fs.String("part-prefix", "", "path prefix of the chunk input files")
	metaSuffix := fs.String("meta-suffix", ".meta.tsv", "metadata file suffix")
	seqSuffix := fs.String("seq-suffix", ".fasta", "sequence file suffix")
	out := fs.String("out", "", "snapshot output directory")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *partPrefix == "" || *out == "" {
		return errors.New("build: -part-prefix and -out are required")
	}

	db, err := openDatabase(*wd, *verbose)
	if err != nil {
		return err
	}
	if err := loadDescriptors(db, *wd); err != nil {
		return err
	}
	if err := db.BuildDictionary(*partPrefix, *metaSuffix); err != nil {
		return err
	}
	if err := db.Build(*partPrefix, *metaSuffix, *seqSuffix); err != nil {
		return err
	}
	return db.Save(*out)
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	wd := fs.String("wd", ".", "working directory")
	snapshot := fs.String("snapshot", "", "snapshot directory")
	detailed := fs.Bool("detailed", false, "print the detailed index report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *snapshot == "" {
		return errors.New("info: -snapshot is required")
	}

	db, err := openDatabase(*wd, false)
	if err != nil {
		return err
	}
	if err := db.Load(*snapshot); err != nil {
		return err
	}
	if *detailed {
		return db.InfoDetailed(os.Stdout)
	}
	return db.Info(os.Stdout)
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	wd := fs.String("wd", ".", "working directory")
	snapshot := fs.String("snapshot", "", "snapshot directory")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *snapshot == "" {
		return errors.New("query: -snapshot is required")
	}

	db, err := openDatabase(*wd, *verbose)
	if err != nil {
		return err
	}
	if err := db.Load(*snapshot); err != nil {
		return err
	}

	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if _, err := db.ExecuteQuery(line, os.Stdout, os.Stderr); err != nil {
			var pe *query.ParseError
			if errors.As(err, &pe) {
				fmt.Fprintln(os.Stderr, pe.Error())
				continue
			}
			return err
		}
	}
	return sc.Err()
}
