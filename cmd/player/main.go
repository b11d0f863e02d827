// Command player is a terminal client for the broadcast service: it drives
// the same progress store, puzzle sessions, and event provider the site
// uses, which makes it handy for poking at a deployment or replaying a
// save file locally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/showofsouls/broadcast/internal/eventclient"
	"github.com/showofsouls/broadcast/internal/progress"
	"github.com/showofsouls/broadcast/internal/provider"
	"github.com/showofsouls/broadcast/internal/registry"
	"github.com/showofsouls/broadcast/internal/runtime"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmds := map[string]func([]string) error{
		"status":  cmdStatus,
		"puzzles": cmdPuzzles,
		"solve":   cmdSolve,
		"event":   cmdEvent,
		"submit":  cmdSubmit,
		"tapes":   cmdTapes,
		"unlock":  cmdUnlock,
		"watch":   cmdWatch,
		"reset":   cmdReset,
	}

	run, ok := cmds[os.Args[1]]
	if !ok {
		printUsage()
		os.Exit(2)
	}
	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, os.Args[1]+" failed:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: player <command> [flags]

commands:
  status    local progress summary
  puzzles   puzzles currently available to play
  solve     complete a puzzle locally (-puzzle, -time)
  event     current global event and countdown
  submit    submit a global event solution (-answer)
  tapes     list unlocked tapes
  unlock    unlock a tape (-tape, -method)
  watch     stream realtime changes until interrupted
  reset     wipe local progress (keeps player id)`)
}

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openStore(dataDir string) (*progress.Store, *registry.Registry, error) {
	reg := registry.Default()
	st, err := progress.Open(dataDir, reg, logger())
	if err != nil {
		return nil, nil, err
	}
	return st, reg, nil
}

func newProvider(st *progress.Store) *provider.Provider {
	client := eventclient.New(eventclient.LoadConfig(), logger())
	return provider.New(client, st.PlayerID(), runtime.RealClock{}, logger())
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, _, err := openStore(*dataDir)
	if err != nil {
		return err
	}
	stats := st.GetPuzzleStats()
	fmt.Println("player:", st.PlayerID())
	fmt.Println("story phase:", st.StoryPhase())
	fmt.Printf("puzzles: %d/%d (%.1f%%), %d attempts\n",
		stats.Completed, stats.Total, stats.Percentage, stats.Attempts)
	ids := make([]string, 0, len(progress.AllAchievements))
	for id := range progress.AllAchievements {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		if st.HasAchievement(progress.AchievementID(id)) {
			fmt.Println("achievement:", id)
		}
	}
	return nil
}

func cmdPuzzles(args []string) error {
	fs := flag.NewFlagSet("puzzles", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, reg, err := openStore(*dataDir)
	if err != nil {
		return err
	}
	avail := reg.Available(st.CompletedPuzzles(), st.StoryPhase())
	sort.Slice(avail, func(i, j int) bool { return avail[i].ID < avail[j].ID })
	for _, d := range avail {
		budget := "untimed"
		if d.TimeBudget > 0 {
			budget = reg.TimeBudget(d.ID).String()
		}
		fmt.Printf("%-18s %-8s %s\n", d.ID, d.Difficulty, budget)
	}
	return nil
}

func cmdSolve(args []string) error {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	puzzleID := fs.String("puzzle", "", "puzzle id to complete")
	seconds := fs.Float64("time", 0, "completion time in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *puzzleID == "" {
		return fmt.Errorf("puzzle is required")
	}

	st, reg, err := openStore(*dataDir)
	if err != nil {
		return err
	}
	// The session records elapsed time from its clock, so the requested
	// completion time is injected by advancing a fake clock.
	clock := runtime.NewFakeClock(time.Now())
	sess, err := runtime.NewSession(reg, st, *puzzleID, clock, nil)
	if err != nil {
		return err
	}
	sess.Start()
	clock.Advance(time.Duration(*seconds * float64(time.Second)))
	sess.HandleSuccess(nil)
	fmt.Printf("completed %s, story phase %d\n", *puzzleID, st.StoryPhase())
	return nil
}

func cmdEvent(args []string) error {
	fs := flag.NewFlagSet("event", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, _, err := openStore(*dataDir)
	if err != nil {
		return err
	}
	p := newProvider(st)
	defer p.Close()
	p.Refresh(context.Background())

	switch p.State() {
	case provider.StateNoEvent:
		fmt.Println("no active event")
	case provider.StateCompleted:
		ev := p.Event()
		by := "unknown"
		if ev.CompletedBy != nil {
			by = *ev.CompletedBy
		}
		fmt.Printf("%s: completed by %s\n", ev.Title, by)
	default:
		ev := p.Event()
		tr := p.TimeRemaining()
		if tr.Expired {
			fmt.Printf("%s: window closed\n", ev.Title)
			return nil
		}
		fmt.Printf("%s: %02d:%02d:%02d remaining, %d/%d sub-puzzles\n",
			ev.Title, tr.Hours, tr.Minutes, tr.Seconds,
			p.CompletedCount(), p.TotalPuzzles())
	}
	return nil
}

func cmdSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	answer := fs.String("answer", "", "solution to submit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *answer == "" {
		return fmt.Errorf("answer is required")
	}

	st, _, err := openStore(*dataDir)
	if err != nil {
		return err
	}
	p := newProvider(st)
	defer p.Close()
	p.Refresh(context.Background())

	res, err := p.SubmitSolution(context.Background(), *answer)
	if err != nil {
		return err
	}
	switch res.Outcome {
	case eventclient.Solved:
		fmt.Println("solved! you were first")
	case eventclient.AlreadyCompleted:
		fmt.Println("someone beat you to it")
	case eventclient.IncorrectSolution:
		fmt.Println("incorrect solution")
	default:
		return fmt.Errorf("submission did not go through (%s)", res.Outcome)
	}
	return nil
}

func cmdTapes(args []string) error {
	fs := flag.NewFlagSet("tapes", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, _, err := openStore(*dataDir)
	if err != nil {
		return err
	}
	p := newProvider(st)
	defer p.Close()
	p.Refresh(context.Background())

	tapes := p.Tapes()
	if len(tapes) == 0 {
		fmt.Println("no tapes unlocked")
		return nil
	}
	for _, tu := range tapes {
		by := "anonymous"
		if tu.UnlockedBy != nil {
			by = *tu.UnlockedBy
		}
		fmt.Printf("%-24s %s  via %s  by %s\n",
			tu.TapeID, tu.UnlockedAt.Format(time.RFC3339), tu.UnlockMethod, by)
	}
	return nil
}

func cmdUnlock(args []string) error {
	fs := flag.NewFlagSet("unlock", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	tapeID := fs.String("tape", "", "tape id to unlock")
	method := fs.String("method", "puzzle_completion", "unlock method")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*tapeID) == "" {
		return fmt.Errorf("tape is required")
	}

	st, _, err := openStore(*dataDir)
	if err != nil {
		return err
	}
	p := newProvider(st)
	defer p.Close()

	if err := p.UnlockTape(context.Background(), *tapeID, *method); err != nil {
		return err
	}
	fmt.Println("unlocked", *tapeID)
	return nil
}

func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := eventclient.New(eventclient.LoadConfig(), logger())

	cancelEv, err := client.SubscribeEvents(ctx, func(env eventclient.Envelope) {
		fmt.Printf("[%s] %s %s\n", env.Table, env.Op, env.Row)
	})
	if err != nil {
		return err
	}
	defer cancelEv()
	cancelTp, err := client.SubscribeTapeUnlocks(ctx, func(env eventclient.Envelope) {
		fmt.Printf("[%s] %s %s\n", env.Table, env.Op, env.Row)
	})
	if err != nil {
		return err
	}
	defer cancelTp()

	fmt.Fprintln(os.Stderr, "watching, ctrl-c to stop")
	<-ctx.Done()
	return nil
}

func cmdReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "data", "path to data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, _, err := openStore(*dataDir)
	if err != nil {
		return err
	}
	st.ResetProgress()
	fmt.Println("progress reset, player id kept:", st.PlayerID())
	return nil
}
