//go:build !lambda

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath     string
	verbose        bool
	membersPath    string
	valuesPath     string
	charactersPath string

	// recommend flags
	slotFlags [SlotCount]int
	pinFlag   map[string]int
	poolFlag  []int
	jsonOut   bool

	logger *zap.Logger
)

// recommendOutput is the JSON shape of a recommend run.
type recommendOutput struct {
	Found   bool    `json:"found"`
	Lineage Lineage `json:"lineage"`
	Score   int     `json:"score"`
	TimeMs  int64   `json:"timeMs"`
}

var rootCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Recommend the highest-affinity seven-slot lineage",
	Long: `lineage fills a child / two parents / four grandparents lineage from a pool
of released characters, maximizing the affinity earned by shared relations.

Pin any slot with its flag; unpinned slots are filled from the pool.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Search for the best lineage",
	Example: `  lineage recommend --child 12
  lineage recommend --p1 3 --gp1 40 --pool 3,7,8,12,40,41,52 --json`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

var affinityCmd = &cobra.Command{
	Use:   "affinity <a> <b> [c]",
	Short: "Print duo or trio affinity",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runAffinity,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ./lineage.yaml if present)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Print detailed search progress to stderr")
	pf.StringVar(&membersPath, "members", "", "relation membership JSON")
	pf.StringVar(&valuesPath, "values", "", "relation point value JSON")
	pf.StringVar(&charactersPath, "characters", "", "character catalog JSON")

	f := recommendCmd.Flags()
	for s := SlotChild; s < SlotCount; s++ {
		f.IntVar(&slotFlags[s], s.String(), 0, fmt.Sprintf("pin the %s slot to a character id", s))
	}
	f.StringToIntVar(&pinFlag, "pin", nil, "pin slots as slot=id pairs, e.g. child=12,gp3=40")
	f.IntSliceVar(&poolFlag, "pool", nil, "candidate ids (default: released characters)")
	f.BoolVar(&jsonOut, "json", false, "Output result as JSON")

	rootCmd.AddCommand(recommendCmd, affinityCmd)
}

// loadConfig applies command-line overrides on top of the config file.
func loadConfig(cmd *cobra.Command) (Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	pf := cmd.Flags()
	if pf.Changed("members") {
		cfg.Members = membersPath
	}
	if pf.Changed("values") {
		cfg.Values = valuesPath
	}
	if pf.Changed("characters") {
		cfg.Characters = charactersPath
	}
	if pf.Changed("verbose") {
		cfg.Verbose = verbose
	}
	return cfg, nil
}

func loadData(cmd *cobra.Command) (Config, *RelationData, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	data, err := LoadRelationData(cfg.Members, cfg.Values, cfg.Characters)
	if err != nil {
		return cfg, nil, err
	}
	logger.Debug("data.loaded",
		zap.Int("members", len(data.Members)),
		zap.Int("values", len(data.Values)),
		zap.Int("characters", len(data.Characters)))
	return cfg, data, nil
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	req := NewRequest()
	for s := range req {
		req[s] = CharacterID(slotFlags[s])
	}
	for name, id := range pinFlag {
		s, ok := parseSlot(name)
		if !ok {
			return fmt.Errorf("unknown slot %q in --pin", name)
		}
		req[s] = CharacterID(id)
	}

	cfg, data, err := loadData(cmd)
	if err != nil {
		return err
	}
	pool := data.Pool()
	if len(poolFlag) > 0 {
		pool = make([]CharacterID, len(poolFlag))
		for i, id := range poolFlag {
			pool[i] = CharacterID(id)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	opt := NewOptimizer(NewScorer(data.Index()), cfg, logger)
	res, err := opt.Optimize(ctx, req, pool)
	if err != nil {
		return fmt.Errorf("search interrupted: %w", err)
	}
	return printRecommendation(cmd.OutOrStdout(), data, res, time.Since(start))
}

func printRecommendation(w io.Writer, data *RelationData, res *Result, elapsed time.Duration) error {
	if jsonOut {
		out := recommendOutput{Found: res != nil, TimeMs: elapsed.Milliseconds()}
		if res != nil {
			out.Lineage = res.Lineage
			out.Score = res.Score
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if res == nil {
		fmt.Fprintln(w, "no lineage satisfies the pinned slots with this pool")
		return nil
	}
	d := CalcLineageDetail(NewScorer(data.Index()), res.Lineage)
	fmt.Fprint(w, FormatLineage(d, data.Names()))
	fmt.Fprintf(w, "elapsed: %.3fs\n", elapsed.Seconds())
	return nil
}

func runAffinity(cmd *cobra.Command, args []string) error {
	ids := make([]CharacterID, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("invalid character id %q", a)
		}
		ids[i] = CharacterID(n)
	}
	_, data, err := loadData(cmd)
	if err != nil {
		return err
	}
	scorer := NewScorer(data.Index())

	var (
		score int
		ok    bool
	)
	if len(ids) == 2 {
		score, ok = scorer.DuoAffinity(ids[0], ids[1])
	} else {
		score, ok = scorer.TrioAffinity(ids[0], ids[1], ids[2])
	}
	if !ok {
		return fmt.Errorf("character ids must be non-zero")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", score, AffinityGrade(score))
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
