// Command alnsort re-sorts an alignment record file into coordinate order.
// It can also recover leftover run files from a failed session and merge
// them into a final output.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/alnfile/alnfile/pkg/common/log"
	"github.com/alnfile/alnfile/pkg/merge"
	"github.com/alnfile/alnfile/pkg/record"
	"github.com/alnfile/alnfile/pkg/run"
	"github.com/alnfile/alnfile/pkg/writer"
)

const usageText = `alnsort - coordinate-sorts alignment record files.

Usage:
  alnsort [options] <input>       Sort <input> into the file given by -o
  alnsort -recover -o <output>    Merge leftover <output>.N.tmp run files

Options:
`

func main() {
	var (
		output     string
		bufferSize int
		threads    int
		codecName  string
		recoverTmp bool
		verbose    bool
	)

	flag.StringVar(&output, "o", "", "output file path (required)")
	flag.IntVar(&bufferSize, "buffer", writer.DefaultBufferSize, "record cache capacity in bytes")
	flag.IntVar(&threads, "threads", 4, "compression worker threads")
	flag.StringVar(&codecName, "codec", "zstd", "output compression: none, snappy or zstd")
	flag.BoolVar(&recoverTmp, "recover", false, "merge leftover run files for the output path")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.NewStandardLogger()
	if verbose {
		logger.SetLevel(log.LevelDebug)
	}

	if output == "" {
		fmt.Fprintln(os.Stderr, "error: -o is required")
		flag.Usage()
		os.Exit(2)
	}

	codec, err := run.ParseCodec(codecName)
	if err != nil {
		logger.Fatal("%v", err)
	}

	if recoverTmp {
		if err := recoverRuns(output, codec, threads, logger); err != nil {
			logger.Fatal("recovery failed: %v", err)
		}
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "error: exactly one input file is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := sortFile(flag.Arg(0), output, writer.Options{
		BufferSize: bufferSize,
		Threads:    threads,
		Sorted:     true,
		Codec:      codec,
		Logger:     logger,
	}); err != nil {
		logger.Fatal("sort failed: %v", err)
	}
}

// sortFile streams every record of input through a sorted writer.
func sortFile(input, output string, opts writer.Options) error {
	in, err := run.OpenReader(input, opts.Threads)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := writer.New(output, opts)
	if err != nil {
		return err
	}
	if err := w.SetHeader(in.Header()); err != nil {
		return err
	}

	var rec record.Record
	for {
		err := in.Next(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := w.Write(&rec); err != nil {
			return err
		}
	}

	return w.Finalize(func(percent int) {
		fmt.Fprintf(os.Stderr, "\rfinalizing: %3d%%", percent)
		if percent == 100 {
			fmt.Fprintln(os.Stderr)
		}
	})
}

// recoverRuns merges the run files a failed session left next to the output.
func recoverRuns(output string, codec run.Codec, threads int, logger log.Logger) error {
	var runs []string
	for i := 0; ; i++ {
		path := fmt.Sprintf("%s.%d.tmp", output, i)
		if _, err := os.Stat(path); err != nil {
			break
		}
		runs = append(runs, path)
	}
	if len(runs) == 0 {
		return fmt.Errorf("no run files found for %s", output)
	}

	logger.Info("recovering %d run files into %s", len(runs), output)
	if len(runs) == 1 {
		return os.Rename(runs[0], output)
	}

	merger := merge.NewMerger(codec, threads, logger, nil)
	return merger.Merge(runs, output)
}
