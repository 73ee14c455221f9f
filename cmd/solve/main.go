package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-solver-api/internal/dto"
	"github.com/noah-isme/timetable-solver-api/internal/service"
	appErrors "github.com/noah-isme/timetable-solver-api/pkg/errors"
	"github.com/noah-isme/timetable-solver-api/pkg/export"
)

// Exit codes distinguish the search outcomes for scripting.
const (
	exitInfeasible     = 20
	exitBudgetExceeded = 21
)

var validFormats = []string{"json", "csv"}

func main() {
	filePath := flag.String("file", "", "Path to the problem JSON (top level or wrapped in \"schedule\"); \"-\" reads standard input")
	outPath := flag.String("out", "", "Path to write the result; standard output when empty")
	format := flag.String("format", "json", "Output format: \"json\" or \"csv\"")
	slots := flag.Int("slots", 48, "Horizon used when the problem omits total_slots")
	maxSlots := flag.Int("max-slots", service.DefaultMaxTotalSlots, "Largest accepted horizon")
	ratio := flag.Float64("too-busy-ratio", 0.8, "Skip instructors unavailable for more than this share of the horizon")
	maxNodes := flag.Int64("max-nodes", 0, "Candidate placement budget; 0 is unlimited")
	timeout := flag.Duration("timeout", 0, "Wall clock budget, e.g. 30s; 0 is unlimited")
	verbose := flag.Bool("v", false, "Log solver activity to standard error")
	flag.Parse()

	*format = strings.ToLower(*format)
	if !slices.Contains(validFormats, *format) {
		log.Fatalf("%v is not a valid format", *format)
	} else if *filePath == "" {
		log.Fatal("an input file must be specified")
	}

	req, err := readRequest(*filePath)
	if err != nil {
		log.Fatalf("cannot parse input file: %v", err)
	}

	logr := zap.NewNop()
	if *verbose {
		if logr, err = zap.NewDevelopment(); err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		defer logr.Sync() //nolint:errcheck
	}

	solver := service.NewScheduleSolverService(nil, nil, nil, nil, logr, service.ScheduleSolverConfig{
		DefaultTotalSlots: *slots,
		MaxTotalSlots:     *maxSlots,
		TooBusyRatio:      *ratio,
		MaxNodes:          *maxNodes,
		Timeout:           *timeout,
	})

	start := time.Now()
	result, err := solver.Solve(context.Background(), req)
	if err != nil {
		os.Exit(report(err, time.Since(start)))
	}

	out := io.Writer(os.Stdout)
	if *outPath != "" {
		file, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("cannot create output file: %v", err)
		}
		defer file.Close()
		out = file
	}
	if err := write(out, *format, result); err != nil {
		log.Fatalf("cannot write result: %v", err)
	}
}

func readRequest(path string) (dto.SolveScheduleRequest, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return dto.SolveScheduleRequest{}, err
	}
	var envelope dto.SolveScheduleEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return dto.SolveScheduleRequest{}, err
	}
	return envelope.Unwrap(), nil
}

func write(out io.Writer, format string, result *dto.SolveScheduleResponse) error {
	if format == "csv" {
		payload, err := export.NewCSVExporter().Render(export.Table{
			Headers: []string{"course_id", "room_id", "instructor_id", "start_slot", "end_slot", "duration"},
			Rows: lo.Map(result.Assignments, func(a dto.AssignmentResponse, _ int) []string {
				return []string{a.CourseID, a.RoomID, a.InstructorID, strconv.Itoa(a.StartSlot), strconv.Itoa(a.EndSlot), strconv.Itoa(a.Duration)}
			}),
		})
		if err != nil {
			return err
		}
		_, err = out.Write(payload)
		return err
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// report prints a failed solve to standard error and returns the process exit code.
func report(err error, elapsed time.Duration) int {
	appErr := appErrors.FromError(err)
	fmt.Fprintf(os.Stderr, "%s: %s (%s)\n", appErr.Code, appErr.Message, elapsed.Round(time.Millisecond))
	if appErr.Details != nil {
		details, _ := json.MarshalIndent(appErr.Details, "", "  ")
		fmt.Fprintln(os.Stderr, string(details))
	}
	switch {
	case errors.Is(err, appErrors.ErrNoValidSchedule):
		return exitInfeasible
	case errors.Is(err, appErrors.ErrSearchBudgetExceeded):
		return exitBudgetExceeded
	default:
		return 1
	}
}
